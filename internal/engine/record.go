package engine

import (
	"fmt"
	"time"

	"github.com/robchristie/loom/internal/gitinfo"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

// RecordOptions carries the optional fields of an execution record.
type RecordOptions struct {
	RequestedTransition *string
	AppliedTransition   *string
	ExitCode            *int
	NotesMD             *string
	Git                 *model.GitRef
	ProducedArtifacts   []model.FileRef
	Commands            []string
	Links               []model.ArtifactLink
}

// BuildExecutionRecord constructs a journal entry for one attempt.
func BuildExecutionRecord(beadID string, phase model.RunPhase, actor model.Actor, opts RecordOptions) *model.ExecutionRecord {
	record := model.NewExecutionRecord()
	record.Envelope = model.NewEnvelope(model.SchemaExecRecord, fmt.Sprintf("exec-%s-%s", beadID, shortID()), actor)
	record.BeadID = beadID
	record.Phase = phase
	record.RequestedTransition = opts.RequestedTransition
	record.AppliedTransition = opts.AppliedTransition
	record.ExitCode = opts.ExitCode
	record.NotesMD = opts.NotesMD
	record.Git = opts.Git
	if opts.ProducedArtifacts != nil {
		record.ProducedArtifacts = opts.ProducedArtifacts
	}
	if opts.Commands != nil {
		record.Commands = opts.Commands
	}
	if opts.Links != nil {
		record.Links = opts.Links
	}
	return record
}

// RecordTransitionAttempt journals one transition request, successful
// or not. On the two edges that consume a decision-ledger entry, the
// entry is linked from the record.
func RecordTransitionAttempt(paths store.Paths, beadID string, phase model.RunPhase, actor model.Actor, requested string, result TransitionResult, extraLinks []model.ArtifactLink) (*model.ExecutionRecord, error) {
	if result.Phase != "" {
		phase = result.Phase
	}
	gitRef := &model.GitRef{
		HeadBefore:  gitinfo.HeadRef(paths.RepoRoot),
		DirtyBefore: gitinfo.DirtyRef(paths.RepoRoot),
	}
	links := append([]model.ArtifactLink{}, extraLinks...)
	links = append(links, result.Links...)

	if result.OK && result.AppliedTransition != "" {
		switch result.AppliedTransition {
		case FormatTransition(model.StatusReady, model.StatusInProgress):
			if bead, err := paths.LoadBead(beadID); err == nil && bead.ExecutionProfile == model.ProfileException {
				if entry, err := FindActiveExceptionDecision(paths, beadID, time.Now().UTC()); err == nil && entry != nil {
					links = append(links, DecisionLink(entry))
				}
			}
		case FormatTransition(model.StatusApprovalPending, model.StatusDone):
			if entry, err := FindApprovalDecision(paths, beadID); err == nil && entry != nil {
				links = append(links, DecisionLink(entry))
			}
		}
	}

	exitCode := 0
	if !result.OK {
		exitCode = 1
	}
	var applied *string
	if result.OK && result.AppliedTransition != "" {
		transition := result.AppliedTransition
		applied = &transition
	}
	var notes *string
	if result.Notes != "" {
		text := result.Notes
		notes = &text
	}
	record := BuildExecutionRecord(beadID, phase, actor, RecordOptions{
		RequestedTransition: &requested,
		AppliedTransition:   applied,
		ExitCode:            &exitCode,
		NotesMD:             notes,
		Git:                 gitRef,
		Links:               links,
	})
	if err := paths.AppendExecutionRecord(record); err != nil {
		return record, fmt.Errorf("journal transition attempt: %w", err)
	}
	return record, nil
}

// RecordDecisionAction journals the act of appending a decision entry,
// linking the entry from the record.
func RecordDecisionAction(paths store.Paths, entry *model.DecisionLedgerEntry, phase model.RunPhase, actor model.Actor, notes string) error {
	beadID := ""
	if entry.BeadID != nil {
		beadID = *entry.BeadID
	}
	exitCode := 0
	record := BuildExecutionRecord(beadID, phase, actor, RecordOptions{
		ExitCode: &exitCode,
		NotesMD:  &notes,
		Git: &model.GitRef{
			HeadBefore:  gitinfo.HeadRef(paths.RepoRoot),
			DirtyBefore: gitinfo.DirtyRef(paths.RepoRoot),
		},
		Links: []model.ArtifactLink{DecisionLink(entry)},
	})
	return paths.AppendExecutionRecord(record)
}

// JournalSimpleAction records a non-transition action (grounding
// generation, evidence collection, spec sync) for the timeline.
func JournalSimpleAction(paths store.Paths, beadID string, phase model.RunPhase, actor model.Actor, notes string, producedPaths []string, exitCode int) error {
	produced := make([]model.FileRef, 0, len(producedPaths))
	for _, path := range producedPaths {
		produced = append(produced, model.FileRef{Path: path})
	}
	record := BuildExecutionRecord(beadID, phase, actor, RecordOptions{
		ExitCode:          &exitCode,
		NotesMD:           &notes,
		ProducedArtifacts: produced,
		Git: &model.GitRef{
			HeadBefore:  gitinfo.HeadRef(paths.RepoRoot),
			DirtyBefore: gitinfo.DirtyRef(paths.RepoRoot),
		},
	})
	return paths.AppendExecutionRecord(record)
}

// DecisionActionPhase maps a bead's current status to the phase used
// when journaling a decision action: planning statuses journal as
// plan, everything else as verify.
func DecisionActionPhase(paths store.Paths, beadID string) model.RunPhase {
	bead, err := paths.LoadBead(beadID)
	if err != nil {
		return model.PhaseVerify
	}
	switch bead.Status {
	case model.StatusDraft, model.StatusSized, model.StatusReady:
		return model.PhasePlan
	default:
		return model.PhaseVerify
	}
}
