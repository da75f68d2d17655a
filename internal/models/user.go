package models

import (
	"slices"
	"time"
)

// User is a platform account keyed by wallet address.
type User struct {
	ID                 string         `json:"id"` // Wallet address
	DisplayName        string         `json:"displayName,omitempty"`
	ProjectIDs         []string       `json:"projectIds"`
	StemIDs            []string       `json:"stemIds"`
	Identities         []UserIdentity `json:"identities"`
	RegisteredGroupIDs []int64        `json:"registeredGroupIds"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// NewUser returns an empty user record for id.
func NewUser(id string) *User {
	now := time.Now().UTC()
	return &User{
		ID:                 id,
		ProjectIDs:         []string{},
		StemIDs:            []string{},
		Identities:         []UserIdentity{},
		RegisteredGroupIDs: []int64{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Identity returns the user's identity for a voting group.
func (u *User) Identity(groupID int64) (UserIdentity, bool) {
	for _, id := range u.Identities {
		if id.VotingGroupID == groupID {
			return id, true
		}
	}
	return UserIdentity{}, false
}

// IsRegistered reports whether the user holds an identity in groupID.
func (u *User) IsRegistered(groupID int64) bool {
	return slices.Contains(u.RegisteredGroupIDs, groupID)
}

// AddIdentity records a new identity. It fails with ErrAlreadyRegistered if
// the user already belongs to the identity's group.
func (u *User) AddIdentity(id UserIdentity) error {
	if u.IsRegistered(id.VotingGroupID) {
		return ErrAlreadyRegistered
	}
	if _, ok := u.Identity(id.VotingGroupID); ok {
		return ErrAlreadyRegistered
	}
	u.Identities = append(u.Identities, id)
	u.RegisteredGroupIDs = append(u.RegisteredGroupIDs, id.VotingGroupID)
	return nil
}

// RemoveIdentity drops the identity and group registration for groupID.
func (u *User) RemoveIdentity(groupID int64) (UserIdentity, error) {
	idx := slices.IndexFunc(u.Identities, func(id UserIdentity) bool { return id.VotingGroupID == groupID })
	if idx < 0 {
		return UserIdentity{}, ErrNotRegistered
	}
	removed := u.Identities[idx]
	u.Identities = slices.Delete(u.Identities, idx, idx+1)
	u.RegisteredGroupIDs = slices.DeleteFunc(u.RegisteredGroupIDs, func(g int64) bool { return g == groupID })
	return removed, nil
}

// AddProject records projectID on the user, once.
func (u *User) AddProject(projectID string) {
	if !slices.Contains(u.ProjectIDs, projectID) {
		u.ProjectIDs = append(u.ProjectIDs, projectID)
	}
}

// RemoveProject forgets projectID.
func (u *User) RemoveProject(projectID string) {
	u.ProjectIDs = slices.DeleteFunc(u.ProjectIDs, func(id string) bool { return id == projectID })
}

// AddStem records stemID on the user, once.
func (u *User) AddStem(stemID string) {
	if !slices.Contains(u.StemIDs, stemID) {
		u.StemIDs = append(u.StemIDs, stemID)
	}
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	c := *u
	c.ProjectIDs = slices.Clone(u.ProjectIDs)
	c.StemIDs = slices.Clone(u.StemIDs)
	c.Identities = slices.Clone(u.Identities)
	c.RegisteredGroupIDs = slices.Clone(u.RegisteredGroupIDs)
	return &c
}
