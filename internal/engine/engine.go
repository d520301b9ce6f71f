package engine

import (
	"fmt"
	"strings"

	"github.com/robchristie/loom/internal/config"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

// TransitionResult is the outcome of one transition request. Notes
// carry every gate failure joined with "; " so a single rejection
// surfaces all remediation needs at once.
type TransitionResult struct {
	OK                bool
	Notes             string
	AppliedTransition string
	Phase             model.RunPhase
	Links             []model.ArtifactLink
}

// RequestTransition runs one lifecycle request: legality, authority,
// then the edge's gate composite. On success the bead is rewritten
// with the new status; on any failure the bead is untouched. The
// caller journals the attempt either way (RecordTransitionAttempt).
func RequestTransition(paths store.Paths, cfg config.Settings, beadID, transition string, actor model.Actor) TransitionResult {
	from, to, err := ParseTransition(transition)
	if err != nil {
		return TransitionResult{OK: false, Notes: err.Error(), Phase: model.PhaseImplement}
	}
	phase := PhaseForTransition(to)

	bead, err := paths.LoadBead(beadID)
	if err != nil {
		return TransitionResult{OK: false, Notes: err.Error(), Phase: phase}
	}

	if from != bead.Status {
		return TransitionResult{
			OK:    false,
			Notes: fmt.Sprintf("Illegal transition: bead is '%s', request was '%s -> %s'", bead.Status, from, to),
			Phase: phase,
		}
	}
	if !AllowedTransition(from, to) {
		return TransitionResult{
			OK:    false,
			Notes: fmt.Sprintf("Illegal transition: '%s -> %s' is not allowed", from, to),
			Phase: phase,
		}
	}
	if allowed := AllowedActorKinds(from, to); allowed != nil && !kindAllowed(actor.Kind, allowed) {
		return TransitionResult{
			OK:    false,
			Notes: fmt.Sprintf("Authority violation: %s may not request '%s->%s' (requires: %s)", actor.Kind, from, to, kindList(allowed)),
			Phase: phase,
		}
	}

	var (
		errorLines []string
		infoNotes  []string
		links      []model.ArtifactLink
	)

	// The boundary evaluation is shared between the budget check and
	// the discovery policy; resolve it at most once per request.
	var boundaryEval *BoundaryEvaluation
	var changedFiles []string
	ensureBoundaryEval := func() (*BoundaryEvaluation, error) {
		if boundaryEval != nil {
			return boundaryEval, nil
		}
		eval, files, err := EvaluateBoundary(paths, bead, nil)
		if err != nil {
			return nil, err
		}
		boundaryEval = eval
		changedFiles = files
		links = append(links, BoundaryLink(eval.Registry))
		if bead.BoundaryRegistryRef == nil && eval.RegistryPath != "" {
			infoNotes = append(infoNotes, "boundary_registry_default="+paths.Rel(eval.RegistryPath))
		}
		infoNotes = append(infoNotes, "boundary_registry_hash="+eval.RegistryHash.Hash)
		return eval, nil
	}

	if bead.ArtifactID != bead.BeadID {
		errorLines = append(errorLines, "Bead artifact_id must equal bead_id")
	}

	switch {
	case from == model.StatusSized && to == model.StatusReady:
		review, err := paths.LoadBeadReview(beadID)
		if err != nil {
			errorLines = append(errorLines, err.Error())
			break
		}
		if gateErr := reviewGate(review); gateErr != "" {
			errorLines = append(errorLines, gateErr)
			break
		}
		// Adopt the tightened checks and freeze them: the snapshot is
		// what the ready -> in_progress gate verifies against.
		bead.AcceptanceChecks = append([]model.AcceptanceCheck{}, review.TightenedAcceptanceChecks...)
		checksHash, err := CanonicalHashForChecks(bead.AcceptanceChecks)
		if err != nil {
			errorLines = append(errorLines, err.Error())
			break
		}
		beadHash, err := CanonicalHash(bead)
		if err != nil {
			errorLines = append(errorLines, err.Error())
			break
		}
		if err := paths.WriteReadySnapshot(store.ReadySnapshot{
			BeadID:               bead.BeadID,
			AcceptanceChecksHash: checksHash.Hash,
			BeadHash:             beadHash.Hash,
		}); err != nil {
			errorLines = append(errorLines, err.Error())
		}

	case from == model.StatusReady && to == model.StatusInProgress:
		review, err := paths.LoadBeadReview(beadID)
		if err != nil {
			errorLines = append(errorLines, err.Error())
		} else if review != nil && !AcceptanceChecksEqual(bead.AcceptanceChecks, review.TightenedAcceptanceChecks) {
			errorLines = append(errorLines, "Acceptance checks changed after ready")
		}
		if gateErr := snapshotGate(paths, bead); gateErr != "" {
			errorLines = append(errorLines, gateErr)
		}
		if gateErr := dependenciesGate(paths, bead); gateErr != "" {
			errorLines = append(errorLines, gateErr)
		}
		if gateErr := specGate(paths, bead); gateErr != "" {
			errorLines = append(errorLines, gateErr)
		}
		if gateErr := profileGate(paths, bead); gateErr != "" {
			errorLines = append(errorLines, gateErr)
		}
		if gateErr := groundingGate(paths, bead); gateErr != "" {
			errorLines = append(errorLines, gateErr)
		}

	case from == model.StatusVerificationPending && to == model.StatusVerified:
		if gateErr := evidenceGate(paths, bead); gateErr != "" {
			errorLines = append(errorLines, gateErr)
		}
		eval, err := ensureBoundaryEval()
		if err != nil {
			errorLines = append(errorLines, err.Error())
			break
		}
		infoNotes = append(infoNotes, fmt.Sprintf(
			"boundary_evaluation=files_touched:%d,subsystems_touched:%d",
			eval.FilesTouched, len(eval.TouchedSubsystems)))
		if bead.BeadType == model.BeadImplementation &&
			(eval.FilesTouched > cfg.MaxFilesTouched || len(eval.TouchedSubsystems) > cfg.MaxSubsystemsTouched) {
			errorLines = append(errorLines, BoundaryViolationNotes(eval, cfg.MaxFilesTouched, cfg.MaxSubsystemsTouched))
			errorLines = append(errorLines, "Boundary limit exceeded: abort or split (abort to aborted:needs-discovery, or split via BeadReview)")
		}

	case from == model.StatusApprovalPending && to == model.StatusDone:
		if gateErr := approvalGate(paths, bead); gateErr != "" {
			errorLines = append(errorLines, gateErr)
		}
	}

	// Policy A: discovery beads must stay out of production paths both
	// when they start and when they claim verification.
	if bead.BeadType == model.BeadDiscovery &&
		(to == model.StatusInProgress || to == model.StatusVerified) {
		eval, err := ensureBoundaryEval()
		if err != nil {
			errorLines = append(errorLines, err.Error())
		} else {
			infoNotes = append(infoNotes, fmt.Sprintf(
				"discovery_policy=Policy A;allowlist=%s;production_prefixes=%s",
				quoteList(cfg.DiscoveryAllowlist), quoteList(eval.ProductionPrefixes)))
			if violation := DiscoveryPolicyErrors(eval, changedFiles, cfg); violation != "" {
				errorLines = append(errorLines, violation)
			}
		}
	}

	notes := strings.Join(errorLines, "; ")
	if len(infoNotes) > 0 {
		extra := strings.Join(infoNotes, "; ")
		if notes == "" {
			notes = extra
		} else {
			notes = notes + "; " + extra
		}
	}

	if len(errorLines) > 0 {
		return TransitionResult{OK: false, Notes: notes, Phase: phase, Links: links}
	}

	bead.Status = to
	if err := store.WriteModel(paths.BeadPath(beadID), bead); err != nil {
		return TransitionResult{OK: false, Notes: err.Error(), Phase: phase, Links: links}
	}
	return TransitionResult{
		OK:                true,
		Notes:             notes,
		AppliedTransition: FormatTransition(from, to),
		Phase:             phase,
		Links:             links,
	}
}

func kindAllowed(kind model.ActorKind, allowed []model.ActorKind) bool {
	for _, candidate := range allowed {
		if candidate == kind {
			return true
		}
	}
	return false
}

func kindList(kinds []model.ActorKind) string {
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
