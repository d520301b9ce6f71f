package model

import "fmt"

// RunPhase locates a journal record in the lifecycle: planning,
// implementing, or verifying.
type RunPhase string

const (
	PhasePlan      RunPhase = "plan"
	PhaseImplement RunPhase = "implement"
	PhaseVerify    RunPhase = "verify"
)

func (p RunPhase) IsValid() bool {
	return p == PhasePlan || p == PhaseImplement || p == PhaseVerify
}

// GitRef snapshots the version-control state around an attempt.
type GitRef struct {
	HeadBefore  *string `json:"head_before"`
	HeadAfter   *string `json:"head_after"`
	DirtyBefore *bool   `json:"dirty_before"`
	DirtyAfter  *bool   `json:"dirty_after"`
}

// ExecutionRecord is one journal entry. Every transition attempt,
// accepted or rejected, produces exactly one.
type ExecutionRecord struct {
	Envelope

	BeadID string   `json:"bead_id"`
	Phase  RunPhase `json:"phase"`

	EngineVersion *string `json:"engine_version"`
	PolicyVersion *string `json:"policy_version"`

	ContainerImage  *string `json:"container_image"`
	ContainerDigest *string `json:"container_digest"`

	Commands          []string  `json:"commands"`
	ExitCode          *int      `json:"exit_code"`
	ProducedArtifacts []FileRef `json:"produced_artifacts"`
	Git               *GitRef   `json:"git"`
	NotesMD           *string   `json:"notes_md"`

	RequestedTransition *string `json:"requested_transition"`
	AppliedTransition   *string `json:"applied_transition"`
}

// NewExecutionRecord returns an ExecutionRecord with slice defaults.
func NewExecutionRecord() *ExecutionRecord {
	return &ExecutionRecord{
		Commands:          []string{},
		ProducedArtifacts: []FileRef{},
	}
}

func (r *ExecutionRecord) Validate() error {
	if err := r.validateHeader(SchemaExecRecord); err != nil {
		return err
	}
	if !ValidBeadID(r.BeadID) {
		return fmt.Errorf("invalid bead_id %q", r.BeadID)
	}
	if !r.Phase.IsValid() {
		return fmt.Errorf("invalid phase %q", r.Phase)
	}
	for i, ref := range r.ProducedArtifacts {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("produced_artifacts[%d]: %w", i, err)
		}
	}
	return nil
}
