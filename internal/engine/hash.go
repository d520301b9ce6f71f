package engine

import (
	"fmt"

	"github.com/robchristie/loom/internal/codec"
	"github.com/robchristie/loom/internal/model"
)

// CanonicalHash computes the content hash of an artifact over its full
// serialized payload.
func CanonicalHash(artifact any) (*model.HashRef, error) {
	digest, err := codec.SHA256Hex(artifact)
	if err != nil {
		return nil, fmt.Errorf("canonical hash: %w", err)
	}
	return model.NewHashRef(digest), nil
}

// CanonicalHashForChecks hashes an acceptance-check list; this is the
// value frozen in the ready snapshot.
func CanonicalHashForChecks(checks []model.AcceptanceCheck) (*model.HashRef, error) {
	if checks == nil {
		checks = []model.AcceptanceCheck{}
	}
	digest, err := codec.SHA256Hex(checks)
	if err != nil {
		return nil, fmt.Errorf("canonical hash for acceptance checks: %w", err)
	}
	return model.NewHashRef(digest), nil
}

// AcceptanceChecksEqual compares two check lists by canonical bytes.
func AcceptanceChecksEqual(left, right []model.AcceptanceCheck) bool {
	a, err := CanonicalHashForChecks(left)
	if err != nil {
		return false
	}
	b, err := CanonicalHashForChecks(right)
	if err != nil {
		return false
	}
	return a.Hash == b.Hash
}
