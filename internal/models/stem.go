package models

import (
	"strings"
	"time"
)

// Stem is an audio contribution to a project. The audio itself lives in blob
// storage; a Stem only carries a reference to it and is never mutated after creation.
type Stem struct {
	ID        string    `json:"id"`        // Unique identifier for the stem (UUID)
	ProjectID string    `json:"projectId"` // Project the stem was submitted to
	CreatedBy string    `json:"createdBy"` // User ID of the submitting collaborator
	Name      string    `json:"name"`
	Type      string    `json:"type"`     // Instrument or role, e.g. "drums", "vocals"
	Filename  string    `json:"filename"` // Original upload filename
	AudioURL  string    `json:"audioUrl"` // Reference into blob storage
	CreatedAt time.Time `json:"createdAt"`
}

// StemDraft is the caller-supplied part of a new stem.
type StemDraft struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
	AudioURL string `json:"audioUrl"`
}

// Normalize trims the draft and checks required fields.
func (d *StemDraft) Normalize() error {
	d.Name = strings.TrimSpace(d.Name)
	d.Type = strings.TrimSpace(d.Type)
	d.Filename = strings.TrimSpace(d.Filename)
	d.AudioURL = strings.TrimSpace(d.AudioURL)

	if d.Name == "" {
		return Invalid("name", "is required")
	}
	if runeLen(d.Name) > 100 {
		return Invalid("name", "must be at most 100 characters")
	}
	if d.AudioURL == "" {
		return Invalid("audioUrl", "is required")
	}
	return nil
}

// QueuedStem is a candidate stem with its running vote tally.
type QueuedStem struct {
	Stem  Stem `json:"stem"`
	Votes int  `json:"votes"`
}
