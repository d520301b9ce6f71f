// Package loom provides a minimal public API for embedding the SDLC
// engine in Go-based orchestration.
//
// Most integrations should drive the loom CLI or HTTP surface; this
// package exports only the types and operations needed to run the
// lifecycle programmatically against a repository root.
package loom

import (
	"github.com/robchristie/loom/internal/config"
	"github.com/robchristie/loom/internal/engine"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

// Settings is the resolved engine configuration.
type Settings = config.Settings

// Paths resolves artifact locations under a repository root.
type Paths = store.Paths

// Actor identifies who is requesting an operation.
type Actor = model.Actor

// Bead is the unit of work traversing the lifecycle.
type Bead = model.Bead

// TransitionResult is the outcome of one transition request.
type TransitionResult = engine.TransitionResult

// LoadSettings resolves configuration from the environment and the
// nearest .sdlc/config.yaml.
func LoadSettings() (Settings, error) {
	return config.Load()
}

// NewPaths builds a Paths for the given repository root.
func NewPaths(repoRoot string) Paths {
	return store.NewPaths(repoRoot)
}

// RequestTransition runs one lifecycle request against the bead. The
// attempt is not journaled; call RecordTransitionAttempt with the
// result to preserve the journal-completeness invariant.
func RequestTransition(paths Paths, cfg Settings, beadID, transition string, actor Actor) TransitionResult {
	return engine.RequestTransition(paths, cfg, beadID, transition, actor)
}

// RecordTransitionAttempt journals one transition attempt.
func RecordTransitionAttempt(paths Paths, beadID string, actor Actor, requested string, result TransitionResult) error {
	phase := engine.PhaseForTransitionString(requested)
	_, err := engine.RecordTransitionAttempt(paths, beadID, phase, actor, requested, result, nil)
	return err
}

// ValidateEvidence validates (and on success marks validated) the
// bead's evidence bundle, returning any validation errors.
func ValidateEvidence(paths Paths, beadID string) ([]string, error) {
	_, errs, err := engine.ValidateEvidenceBundle(paths, beadID, true)
	return errs, err
}

// InvalidateEvidenceIfStale invalidates a stale validated bundle and
// returns the reason, or "" when the bundle is still fresh.
func InvalidateEvidenceIfStale(paths Paths, beadID string, actor Actor) (string, error) {
	return engine.InvalidateEvidenceIfStale(paths, beadID, actor)
}
