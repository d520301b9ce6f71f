package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

// Gates are independent predicates guarding a lifecycle edge. Each
// contributes at most one descriptive error line and never mutates
// state; the transition engine collects every failure before deciding.

// reviewGate requires a sizing review with a bucket other than XL.
func reviewGate(review *model.BeadReview) string {
	if review == nil {
		return "BeadReview missing"
	}
	if review.EffortBucket == model.EffortXL {
		return "BeadReview effort bucket XL not allowed"
	}
	return ""
}

// dependenciesGate requires every depends_on bead to be done.
func dependenciesGate(paths store.Paths, bead *model.Bead) string {
	if len(bead.DependsOn) == 0 {
		return ""
	}
	var blockers []string
	for _, dependencyID := range bead.DependsOn {
		dependency, err := paths.LoadBead(dependencyID)
		if err != nil {
			blockers = append(blockers, fmt.Sprintf("%s (missing)", dependencyID))
			continue
		}
		if dependency.Status != model.StatusDone {
			blockers = append(blockers, fmt.Sprintf("%s (%s)", dependencyID, dependency.Status))
		}
	}
	if len(blockers) > 0 {
		return "Dependencies not done: " + strings.Join(blockers, ", ")
	}
	return ""
}

// specGate requires implementation beads to carry an approved openspec
// reference synced into their run directory.
func specGate(paths store.Paths, bead *model.Bead) string {
	if bead.BeadType != model.BeadImplementation {
		return ""
	}
	if bead.OpenSpecRef == nil {
		return "Bead.openspec_ref missing"
	}
	if bead.OpenSpecRef.ArtifactType != "openspec_ref" {
		return "Bead.openspec_ref must reference openspec_ref artifact"
	}
	ref, err := store.LoadOpenSpecRef(paths.OpenSpecRefPath(bead.BeadID))
	if err != nil {
		return fmt.Sprintf("OpenSpecRef invalid: %v", err)
	}
	if ref == nil {
		return "OpenSpecRef artifact missing (runs/<bead_id>/openspec_ref.json); run openspec sync"
	}
	if ref.State != model.SpecApproved {
		return "OpenSpecRef not approved"
	}
	if ref.ArtifactID != bead.OpenSpecRef.ArtifactID {
		return fmt.Sprintf(
			"OpenSpecRef mismatch: runs/%s/openspec_ref.json artifact_id='%s' does not match bead.openspec_ref.artifact_id='%s'",
			bead.BeadID, ref.ArtifactID, bead.OpenSpecRef.ArtifactID)
	}
	return ""
}

// profileGate requires an active exception decision before a bead with
// the exception execution profile may start.
func profileGate(paths store.Paths, bead *model.Bead) string {
	if bead.ExecutionProfile != model.ProfileException {
		return ""
	}
	entry, err := FindActiveExceptionDecision(paths, bead.BeadID, time.Now().UTC())
	if err != nil {
		return fmt.Sprintf("Decision ledger unreadable: %v", err)
	}
	if entry == nil {
		return "Execution profile exception requires DecisionLedgerEntry"
	}
	return ""
}

// groundingGate requires a grounding bundle to exist.
func groundingGate(paths store.Paths, bead *model.Bead) string {
	grounding, err := paths.LoadGrounding(bead.BeadID)
	if err != nil {
		return fmt.Sprintf("GroundingBundle invalid: %v", err)
	}
	if grounding == nil {
		return "GroundingBundle missing"
	}
	return ""
}

// evidenceGate requires a validated evidence bundle.
func evidenceGate(paths store.Paths, bead *model.Bead) string {
	evidence, err := paths.LoadEvidence(bead.BeadID)
	if err != nil {
		return fmt.Sprintf("EvidenceBundle invalid: %v", err)
	}
	if evidence == nil {
		return "EvidenceBundle missing"
	}
	if evidence.Status != model.EvidenceValidated {
		return "EvidenceBundle not validated"
	}
	return ""
}

// approvalGate requires a human approval decision with a non-empty
// summary.
func approvalGate(paths store.Paths, bead *model.Bead) string {
	entry, err := FindApprovalDecision(paths, bead.BeadID)
	if err != nil {
		return fmt.Sprintf("Decision ledger unreadable: %v", err)
	}
	if entry == nil {
		return "Approval DecisionLedgerEntry missing"
	}
	return ""
}

// snapshotGate requires the bead's acceptance checks to still match
// the hash frozen at ready.
func snapshotGate(paths store.Paths, bead *model.Bead) string {
	snapshot, err := paths.LoadReadySnapshot(bead.BeadID)
	if err != nil {
		return fmt.Sprintf("Acceptance checks snapshot unreadable: %v", err)
	}
	if snapshot == nil {
		return "Acceptance checks snapshot missing after ready"
	}
	current, err := CanonicalHashForChecks(bead.AcceptanceChecks)
	if err != nil {
		return fmt.Sprintf("Acceptance checks unhashable: %v", err)
	}
	if snapshot.AcceptanceChecksHash != current.Hash {
		return "Acceptance checks changed after ready"
	}
	return ""
}
