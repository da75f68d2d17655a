package models

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	NameMinLen        = 3
	NameMaxLen        = 50
	DescriptionMaxLen = 300
	MaxBPM            = 1000
	MaxTrackLimit     = 1000
)

// Project is the transactional unit of the voting subsystem: its queue,
// accepted stems, voter identities and spent nullifiers always change together.
type Project struct {
	ID              string          `json:"id"`            // Unique identifier for the project (UUID)
	CreatedBy       string          `json:"createdBy"`     // User ID of the creator
	Collaborators   []string        `json:"collaborators"` // Always contains CreatedBy
	Name            string          `json:"name"`          // Globally unique
	Description     string          `json:"description"`
	BPM             int             `json:"bpm"`
	TrackLimit      int             `json:"trackLimit"` // Maximum number of accepted stems
	Tags            []string        `json:"tags"`
	Stems           []Stem          `json:"stems"`
	Queue           []QueuedStem    `json:"queue"`
	VotingGroupID   int64           `json:"votingGroupId"`
	VoterIdentities []VoterIdentity `json:"voterIdentities"` // Project-side copies, no trapdoors
	SpentNullifiers map[string]bool `json:"spentNullifiers"` // spendKey(stemID, nullifier) -> true
	DirectAccept    bool            `json:"directAccept"`    // Accept submissions without a vote while capacity remains
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewProject is the payload of the project creation entry point.
type NewProject struct {
	CreatedBy     string   `json:"createdBy"`
	Collaborators []string `json:"collaborators"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	BPM           int      `json:"bpm"`
	TrackLimit    int      `json:"trackLimit"`
	Tags          []string `json:"tags"`
	DirectAccept  bool     `json:"directAccept"`
}

// Normalize trims and de-duplicates the payload, then validates field constraints.
func (n *NewProject) Normalize() error {
	n.CreatedBy = strings.TrimSpace(n.CreatedBy)
	n.Name = strings.TrimSpace(n.Name)
	n.Description = strings.TrimSpace(n.Description)

	if n.CreatedBy == "" {
		return Invalid("createdBy", "is required")
	}
	if l := runeLen(n.Name); l < NameMinLen || l > NameMaxLen {
		return Invalid("name", "must be %d-%d characters", NameMinLen, NameMaxLen)
	}
	if l := runeLen(n.Description); l < 1 || l > DescriptionMaxLen {
		return Invalid("description", "must be 1-%d characters", DescriptionMaxLen)
	}
	if n.BPM < 0 || n.BPM > MaxBPM {
		return Invalid("bpm", "must be between 0 and %d", MaxBPM)
	}
	if n.TrackLimit < 0 || n.TrackLimit > MaxTrackLimit {
		return Invalid("trackLimit", "must be between 0 and %d", MaxTrackLimit)
	}

	// Creator first, then everyone else once.
	n.Collaborators = uniqueTrimmed(append([]string{n.CreatedBy}, n.Collaborators...))
	n.Tags = uniqueTrimmed(n.Tags)
	return nil
}

func uniqueTrimmed(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// IsCollaborator reports whether userID may contribute to the project.
func (p *Project) IsCollaborator(userID string) bool {
	return slices.Contains(p.Collaborators, userID)
}

// AddCollaborator adds userID. It reports false if userID was already present.
func (p *Project) AddCollaborator(userID string) bool {
	if p.IsCollaborator(userID) {
		return false
	}
	p.Collaborators = append(p.Collaborators, userID)
	return true
}

// Capacity is the number of stems that can still be accepted.
func (p *Project) Capacity() int {
	return max(p.TrackLimit-len(p.Stems), 0)
}

// AcceptStem appends stem to the accepted stems. Every path that grows Stems
// goes through here so the track limit holds.
func (p *Project) AcceptStem(stem Stem) error {
	if p.Capacity() == 0 {
		return ErrNoCapacity
	}
	p.Stems = append(p.Stems, stem)
	return nil
}

// QueueIndex returns the position of stemID in the queue, or -1.
func (p *Project) QueueIndex(stemID string) int {
	return slices.IndexFunc(p.Queue, func(q QueuedStem) bool { return q.Stem.ID == stemID })
}

// Enqueue appends stem to the queue with no votes.
func (p *Project) Enqueue(stem Stem) (QueuedStem, error) {
	if p.QueueIndex(stem.ID) >= 0 {
		return QueuedStem{}, ErrDuplicateStem
	}
	q := QueuedStem{Stem: stem}
	p.Queue = append(p.Queue, q)
	return q, nil
}

// Dequeue removes stemID from the queue.
func (p *Project) Dequeue(stemID string) {
	p.Queue = slices.DeleteFunc(p.Queue, func(q QueuedStem) bool { return q.Stem.ID == stemID })
}

// Voter returns the project-side identity registered under commitment.
func (p *Project) Voter(commitment string) (VoterIdentity, bool) {
	for _, v := range p.VoterIdentities {
		if v.Commitment == commitment && v.VotingGroupID == p.VotingGroupID {
			return v, true
		}
	}
	return VoterIdentity{}, false
}

// AddVoter stores the public part of id. The identity must belong to this
// project's voting group.
func (p *Project) AddVoter(id VoterIdentity) error {
	if id.VotingGroupID != p.VotingGroupID {
		return Invalid("votingGroupId", "identity belongs to group %d, project uses %d", id.VotingGroupID, p.VotingGroupID)
	}
	if _, ok := p.Voter(id.Commitment); ok {
		return ErrAlreadyRegistered
	}
	p.VoterIdentities = append(p.VoterIdentities, id.Public())
	return nil
}

// RemoveVoter drops the identity registered under commitment, if any.
func (p *Project) RemoveVoter(commitment string) bool {
	before := len(p.VoterIdentities)
	p.VoterIdentities = slices.DeleteFunc(p.VoterIdentities, func(v VoterIdentity) bool { return v.Commitment == commitment })
	return len(p.VoterIdentities) != before
}

// Commitments returns the sorted commitments of the voting group.
func (p *Project) Commitments() []string {
	out := make([]string, 0, len(p.VoterIdentities))
	for _, v := range p.VoterIdentities {
		if v.VotingGroupID == p.VotingGroupID {
			out = append(out, v.Commitment)
		}
	}
	sort.Strings(out)
	return out
}

func spendKey(stemID, nullifier string) string {
	return stemID + "/" + nullifier
}

// IsSpent reports whether nullifier was already used on stemID.
func (p *Project) IsSpent(stemID, nullifier string) bool {
	return p.SpentNullifiers[spendKey(stemID, nullifier)]
}

// Spend marks nullifier as used on stemID.
func (p *Project) Spend(stemID, nullifier string) {
	if p.SpentNullifiers == nil {
		p.SpentNullifiers = make(map[string]bool)
	}
	p.SpentNullifiers[spendKey(stemID, nullifier)] = true
}

// Tally orders queue by votes descending; equal votes keep queue order.
// The input is not modified.
func Tally(queue []QueuedStem) []QueuedStem {
	ranked := slices.Clone(queue)
	if ranked == nil {
		ranked = []QueuedStem{}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Votes > ranked[j].Votes })
	return ranked
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	c := *p
	c.Collaborators = slices.Clone(p.Collaborators)
	c.Tags = slices.Clone(p.Tags)
	c.Stems = slices.Clone(p.Stems)
	c.Queue = slices.Clone(p.Queue)
	c.VoterIdentities = slices.Clone(p.VoterIdentities)
	c.SpentNullifiers = maps.Clone(p.SpentNullifiers)
	return &c
}
