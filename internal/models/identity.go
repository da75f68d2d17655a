package models

// VoterIdentity is an anonymous membership in one voting group.
//
// Commitment is the public token added to the group. Nullifier is presented
// with every vote and is spent once per stem. Trapdoor is the owner's secret;
// it is populated only in the value handed back at registration and is never
// stored alongside the project.
type VoterIdentity struct {
	Commitment    string `json:"commitment"`
	Nullifier     string `json:"nullifier"`
	Trapdoor      string `json:"trapdoor,omitempty"`
	VotingGroupID int64  `json:"votingGroupId"`
}

// Public returns the project-side copy of the identity, without the trapdoor.
func (v VoterIdentity) Public() VoterIdentity {
	v.Trapdoor = ""
	return v
}

// UserIdentity is the server's record of an identity a user holds. Only a
// digest of the trapdoor is kept.
type UserIdentity struct {
	Commitment     string `json:"commitment"`
	Nullifier      string `json:"nullifier"`
	TrapdoorDigest string `json:"trapdoorDigest"`
	VotingGroupID  int64  `json:"votingGroupId"`
}
