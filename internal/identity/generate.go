package identity

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

const secretSize = 32

// Generate derives a fresh identity for votingGroupID from entropy read from r.
//
// A 32-byte seed is expanded with HKDF-SHA3-256 (salted with the group id)
// into the trapdoor and the nullifier; the commitment binds both. With a
// 256-bit seed collisions are negligible without any lookup.
func Generate(r io.Reader, votingGroupID int64) (models.VoterIdentity, error) {
	seed := make([]byte, secretSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return models.VoterIdentity{}, fmt.Errorf("reading identity seed: %w", err)
	}

	salt := binary.BigEndian.AppendUint64(nil, uint64(votingGroupID))
	kdf := hkdf.New(sha3.New256, seed, salt, []byte("stemhub voter identity"))

	trapdoor := make([]byte, secretSize)
	nullifier := make([]byte, secretSize)
	if _, err := io.ReadFull(kdf, trapdoor); err != nil {
		return models.VoterIdentity{}, fmt.Errorf("deriving trapdoor: %w", err)
	}
	if _, err := io.ReadFull(kdf, nullifier); err != nil {
		return models.VoterIdentity{}, fmt.Errorf("deriving nullifier: %w", err)
	}

	return models.VoterIdentity{
		Commitment:    Commit(nullifier, trapdoor),
		Nullifier:     hex.EncodeToString(nullifier),
		Trapdoor:      hex.EncodeToString(trapdoor),
		VotingGroupID: votingGroupID,
	}, nil
}

// Commit hashes a nullifier and trapdoor into the public commitment.
func Commit(nullifier, trapdoor []byte) string {
	h := sha3.New256()
	h.Write([]byte("commitment"))
	h.Write(nullifier)
	h.Write(trapdoor)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the hex SHA3-256 of a hex trapdoor. Only the digest is stored.
func Digest(trapdoor string) string {
	sum := sha3.Sum256([]byte(trapdoor))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether trapdoor and nullifier (both hex) open commitment.
func Verify(commitment, nullifier, trapdoor string) bool {
	n, err := hex.DecodeString(nullifier)
	if err != nil {
		return false
	}
	t, err := hex.DecodeString(trapdoor)
	if err != nil {
		return false
	}
	return Commit(n, t) == commitment
}

var defaultRand io.Reader = rand.Reader
