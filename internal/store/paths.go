// Package store reads and writes SDLC artifacts under a repository
// root: per-bead directories below runs/, the append-only journal and
// decision ledger, and the boundary/openspec reference files. The
// filesystem is the single source of truth; nothing is cached across
// calls.
package store

import "path/filepath"

// Paths resolves every artifact location relative to a repo root.
type Paths struct {
	RepoRoot string
}

// NewPaths builds a Paths for the given repository root.
func NewPaths(repoRoot string) Paths {
	return Paths{RepoRoot: repoRoot}
}

// RunsDir is the parent of all per-bead directories.
func (p Paths) RunsDir() string {
	return filepath.Join(p.RepoRoot, "runs")
}

// JournalPath is the append-only ExecutionRecord stream.
func (p Paths) JournalPath() string {
	return filepath.Join(p.RunsDir(), "journal.jsonl")
}

// DecisionLedgerPath is the append-only DecisionLedgerEntry stream at
// the repository root.
func (p Paths) DecisionLedgerPath() string {
	return filepath.Join(p.RepoRoot, "decision_ledger.jsonl")
}

// BeadDir is the per-bead artifact directory.
func (p Paths) BeadDir(beadID string) string {
	return filepath.Join(p.RunsDir(), beadID)
}

// BeadPath is the canonical bead state file.
func (p Paths) BeadPath(beadID string) string {
	return filepath.Join(p.BeadDir(beadID), "bead.json")
}

// ReviewPath is the sizing review for a bead.
func (p Paths) ReviewPath(beadID string) string {
	return filepath.Join(p.BeadDir(beadID), "bead_review.json")
}

// GroundingPath is the grounding bundle for a bead.
func (p Paths) GroundingPath(beadID string) string {
	return filepath.Join(p.BeadDir(beadID), "grounding.json")
}

// EvidencePath is the evidence bundle for a bead.
func (p Paths) EvidencePath(beadID string) string {
	return filepath.Join(p.BeadDir(beadID), "evidence.json")
}

// EvidenceLogDir holds per-check output logs.
func (p Paths) EvidenceLogDir(beadID string) string {
	return filepath.Join(p.BeadDir(beadID), "evidence")
}

// OpenSpecRefPath is the bead-local copy of its approved spec ref.
func (p Paths) OpenSpecRefPath(beadID string) string {
	return filepath.Join(p.BeadDir(beadID), "openspec_ref.json")
}

// ReadySnapshotPath records the canonical acceptance-check hash frozen
// at the sized -> ready transition.
func (p Paths) ReadySnapshotPath(beadID string) string {
	return filepath.Join(p.BeadDir(beadID), "ready_acceptance_hash.json")
}

// BoundaryRegistryPath is the default subsystem registry.
func (p Paths) BoundaryRegistryPath() string {
	return filepath.Join(p.RepoRoot, "sdlc", "boundary_registry.json")
}

// BoundaryRegistryRefPath locates a registry referenced by artifact id.
func (p Paths) BoundaryRegistryRefPath(artifactID string) string {
	return filepath.Join(p.RepoRoot, "sdlc", artifactID+".json")
}

// OpenSpecRefsDir holds the external specification references.
func (p Paths) OpenSpecRefsDir() string {
	return filepath.Join(p.RepoRoot, "openspec", "refs")
}

// OpenSpecRefSource is the repo-level spec ref for an artifact id.
func (p Paths) OpenSpecRefSource(artifactID string) string {
	return filepath.Join(p.OpenSpecRefsDir(), artifactID+".json")
}

// LockDir holds the advisory file locks guarding the append-only logs.
func (p Paths) LockDir() string {
	return filepath.Join(p.RepoRoot, ".sdlc")
}

// JournalLockPath guards journal appends.
func (p Paths) JournalLockPath() string {
	return filepath.Join(p.LockDir(), "journal.lock")
}

// DecisionLedgerLockPath guards decision-ledger appends.
func (p Paths) DecisionLedgerLockPath() string {
	return filepath.Join(p.LockDir(), "decision_ledger.lock")
}

// Rel converts an absolute path under the repo root to a repo-relative
// path with forward slashes; paths outside the root pass through.
func (p Paths) Rel(path string) string {
	rel, err := filepath.Rel(p.RepoRoot, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
