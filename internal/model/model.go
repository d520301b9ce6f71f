// Package model defines the SDLC artifact types, their strict JSON
// decoding rules, and the schema registry keyed by
// (schema_name, schema_version).
//
// Every artifact marshals all of its declared payload fields (optional
// fields serialize as null), so the canonical content hash of an
// artifact is a function of the complete payload and nothing else.
package model

import (
	"fmt"
	"regexp"
	"time"
)

// Schema names for every registered artifact type.
const (
	SchemaBead           = "sdlc.bead"
	SchemaBeadReview     = "sdlc.bead_review"
	SchemaGrounding      = "sdlc.grounding_bundle"
	SchemaEvidence       = "sdlc.evidence_bundle"
	SchemaExecRecord     = "sdlc.execution_record"
	SchemaDecisionEntry  = "sdlc.decision_ledger_entry"
	SchemaBoundary       = "sdlc.boundary_registry"
	SchemaOpenSpecRef    = "sdlc.openspec_ref"
)

var (
	beadIDRe = regexp.MustCompile(`^work-[a-z0-9]+(\.[a-z0-9]+)?$`)
	sha256Re = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// ValidBeadID reports whether id matches the bead identity pattern.
func ValidBeadID(id string) bool {
	return beadIDRe.MatchString(id)
}

// ActorKind identifies who is acting: a person, an LLM-backed agent, or
// the engine itself. Authority over restricted transitions keys off it.
type ActorKind string

const (
	ActorHuman  ActorKind = "human"
	ActorAgent  ActorKind = "agent"
	ActorSystem ActorKind = "system"
)

func (k ActorKind) IsValid() bool {
	switch k {
	case ActorHuman, ActorAgent, ActorSystem:
		return true
	}
	return false
}

// Actor is the creator recorded on every artifact.
type Actor struct {
	Kind  ActorKind `json:"kind"`
	Name  string    `json:"name"`
	Email *string   `json:"email"`
}

func (a Actor) Validate() error {
	if !a.Kind.IsValid() {
		return fmt.Errorf("invalid actor kind %q (expected human, agent, or system)", a.Kind)
	}
	if a.Name == "" {
		return fmt.Errorf("actor name is required")
	}
	return nil
}

// HashRef carries a SHA-256 content hash.
type HashRef struct {
	HashAlg string `json:"hash_alg"`
	Hash    string `json:"hash"`
}

// NewHashRef wraps a hex digest in a HashRef.
func NewHashRef(hexDigest string) *HashRef {
	return &HashRef{HashAlg: "sha256", Hash: hexDigest}
}

func (h HashRef) Validate() error {
	if h.HashAlg != "sha256" {
		return fmt.Errorf("invalid hash_alg %q (only sha256 is supported)", h.HashAlg)
	}
	if !sha256Re.MatchString(h.Hash) {
		return fmt.Errorf("invalid sha256 hash %q", h.Hash)
	}
	return nil
}

// FileRef points at a repo-relative path, optionally pinned to content.
type FileRef struct {
	Path        string   `json:"path"`
	ContentHash *HashRef `json:"content_hash"`
}

func (f FileRef) Validate() error {
	if f.Path == "" {
		return fmt.Errorf("file ref path is required")
	}
	if f.ContentHash != nil {
		if err := f.ContentHash.Validate(); err != nil {
			return fmt.Errorf("file ref %s: %w", f.Path, err)
		}
	}
	return nil
}

// ArtifactLink references another artifact by identity only; traversal
// always re-loads from disk.
type ArtifactLink struct {
	ArtifactType  string  `json:"artifact_type"`
	ArtifactID    string  `json:"artifact_id"`
	SchemaName    *string `json:"schema_name"`
	SchemaVersion *int    `json:"schema_version"`
}

func (l ArtifactLink) Validate() error {
	if l.ArtifactType == "" {
		return fmt.Errorf("artifact link type is required")
	}
	if err := validateArtifactID(l.ArtifactID); err != nil {
		return fmt.Errorf("artifact link: %w", err)
	}
	return nil
}

// Envelope is the common header carried by every persisted artifact.
type Envelope struct {
	SchemaName    string         `json:"schema_name"`
	SchemaVersion int            `json:"schema_version"`
	ArtifactID    string         `json:"artifact_id"`
	CreatedAt     time.Time      `json:"created_at"`
	CreatedBy     Actor          `json:"created_by"`
	Links         []ArtifactLink `json:"links"`
}

// NewEnvelope builds the common header for a freshly created artifact.
func NewEnvelope(schemaName string, artifactID string, createdBy Actor) Envelope {
	return Envelope{
		SchemaName:    schemaName,
		SchemaVersion: 1,
		ArtifactID:    artifactID,
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     createdBy,
		Links:         []ArtifactLink{},
	}
}

func validateArtifactID(id string) error {
	if len(id) < 6 || len(id) > 128 {
		return fmt.Errorf("artifact_id %q must be 6-128 characters", id)
	}
	return nil
}

func (e Envelope) validateHeader(wantSchema string) error {
	if e.SchemaName != wantSchema {
		return fmt.Errorf("schema_name %q does not match %q", e.SchemaName, wantSchema)
	}
	if e.SchemaVersion != 1 {
		return fmt.Errorf("unsupported schema_version %d for %s", e.SchemaVersion, wantSchema)
	}
	if err := validateArtifactID(e.ArtifactID); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if err := e.CreatedBy.Validate(); err != nil {
		return fmt.Errorf("created_by: %w", err)
	}
	for i, link := range e.Links {
		if err := link.Validate(); err != nil {
			return fmt.Errorf("links[%d]: %w", i, err)
		}
	}
	return nil
}
