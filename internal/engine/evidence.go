package engine

import (
	"fmt"
	"strings"

	"github.com/robchristie/loom/internal/gitinfo"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

// EvidenceValidationErrors checks a bundle against its bead and the
// decision ledger: hash binding, manual-check rules, acceptance
// coverage, and per-check execution results. Errors are collected,
// never short-circuited.
func EvidenceValidationErrors(bead *model.Bead, evidence *model.EvidenceBundle, decisions []*model.DecisionLedgerEntry) []string {
	var errs []string

	var manualItems []model.EvidenceItem
	for _, item := range evidence.Items {
		if item.EvidenceType == model.EvidenceManualCheck {
			manualItems = append(manualItems, item)
		}
	}
	if len(manualItems) > 0 {
		if evidence.CreatedBy.Kind != model.ActorHuman {
			errs = append(errs, "Manual check evidence requires human bundle creator")
		}
		for _, item := range manualItems {
			if item.SummaryMD == nil || strings.TrimSpace(*item.SummaryMD) == "" {
				errs = append(errs, "Manual check evidence requires summary_md")
			}
		}
	}

	beadHash, err := CanonicalHash(bead)
	if err != nil {
		errs = append(errs, fmt.Sprintf("bead unhashable: %v", err))
	} else if evidence.ForBeadHash == nil {
		errs = append(errs, "EvidenceBundle.for_bead_hash missing")
	} else if evidence.ForBeadHash.Hash != beadHash.Hash {
		errs = append(errs, "EvidenceBundle.for_bead_hash does not match bead hash; evidence is stale")
	}

	errs = append(errs, AcceptanceCoverageErrors(bead, evidence, decisions)...)

	for _, check := range bead.AcceptanceChecks {
		item := findItemForCheck(evidence, check)
		if item == nil {
			errs = append(errs, fmt.Sprintf("Missing evidence for command check '%s'", check.Name))
			continue
		}
		if item.ExitCode == nil {
			errs = append(errs, fmt.Sprintf("Evidence item %s missing exit_code", item.Name))
			continue
		}
		if *item.ExitCode != check.ExpectExitCode {
			errs = append(errs, fmt.Sprintf("Evidence item %s expected exit_code %d got %d",
				item.Name, check.ExpectExitCode, *item.ExitCode))
		}
	}

	return errs
}

// findItemForCheck resolves the evidence item for a check: by name
// first, then by command. Name-preferred matching lets two checks
// share a command with different expected exit codes.
func findItemForCheck(evidence *model.EvidenceBundle, check model.AcceptanceCheck) *model.EvidenceItem {
	for i := range evidence.Items {
		if evidence.Items[i].Name == check.Name {
			return &evidence.Items[i]
		}
	}
	if check.Command != "" {
		for i := range evidence.Items {
			if evidence.Items[i].Command != nil && *evidence.Items[i].Command == check.Command {
				return &evidence.Items[i]
			}
		}
	}
	return nil
}

// AcceptanceCoverageErrors reports every acceptance check that is
// neither waived by an exception decision nor covered by a matching
// command result, a human summary mentioning it, or a matching
// expected-output attachment.
func AcceptanceCoverageErrors(bead *model.Bead, evidence *model.EvidenceBundle, decisions []*model.DecisionLedgerEntry) []string {
	waived := WaivedCheckNames(bead.BeadID, decisions)

	var errs []string
	for _, check := range bead.AcceptanceChecks {
		if waived[check.Name] {
			continue
		}
		if coveredByCommand(check, evidence) {
			continue
		}
		if coveredByHumanSummary(check, evidence) {
			continue
		}
		if coveredByOutput(check, evidence) {
			continue
		}
		errs = append(errs, fmt.Sprintf("Acceptance check '%s' not covered", check.Name))
	}
	return errs
}

func coveredByCommand(check model.AcceptanceCheck, evidence *model.EvidenceBundle) bool {
	for _, item := range evidence.Items {
		if item.Command != nil && *item.Command == check.Command &&
			item.ExitCode != nil && *item.ExitCode == check.ExpectExitCode {
			return true
		}
	}
	return false
}

func coveredByHumanSummary(check model.AcceptanceCheck, evidence *model.EvidenceBundle) bool {
	if evidence.CreatedBy.Kind != model.ActorHuman {
		return false
	}
	for _, item := range evidence.Items {
		if item.SummaryMD != nil && strings.Contains(*item.SummaryMD, check.Name) {
			return true
		}
	}
	return false
}

func coveredByOutput(check model.AcceptanceCheck, evidence *model.EvidenceBundle) bool {
	if len(check.ExpectedOutputs) == 0 {
		return false
	}
	expected := map[[2]string]bool{}
	for _, ref := range check.ExpectedOutputs {
		expected[fileRefKey(ref)] = true
	}
	for _, item := range evidence.Items {
		for _, attachment := range item.Attachments {
			if expected[fileRefKey(attachment)] {
				return true
			}
		}
	}
	return false
}

func fileRefKey(ref model.FileRef) [2]string {
	hash := ""
	if ref.ContentHash != nil {
		hash = ref.ContentHash.Hash
	}
	return [2]string{ref.Path, hash}
}

// ValidateEvidenceBundle loads the bead and its evidence, collects
// validation errors, and on a clean pass (with markValidated) flips
// the bundle to validated, refreshing its bead-hash binding.
func ValidateEvidenceBundle(paths store.Paths, beadID string, markValidated bool) (*model.EvidenceBundle, []string, error) {
	bead, err := paths.LoadBead(beadID)
	if err != nil {
		return nil, nil, err
	}
	evidence, err := paths.LoadEvidence(beadID)
	if err != nil {
		return nil, nil, err
	}
	if evidence == nil {
		return nil, []string{"EvidenceBundle missing"}, nil
	}
	decisions, err := paths.ReadDecisionEntries()
	if err != nil {
		return evidence, nil, err
	}
	errs := EvidenceValidationErrors(bead, evidence, decisions)
	if len(errs) > 0 {
		return evidence, errs, nil
	}
	if markValidated {
		beadHash, err := CanonicalHash(bead)
		if err != nil {
			return evidence, nil, err
		}
		evidence.Status = model.EvidenceValidated
		evidence.ForBeadHash = beadHash
		if err := store.WriteModel(paths.EvidencePath(beadID), evidence); err != nil {
			return evidence, nil, err
		}
	}
	return evidence, nil, nil
}

// InvalidateEvidenceIfStale flips a validated bundle to invalidated
// when the bead hash or the git state recorded at validation time no
// longer matches reality. Returns the joined reason string, or ""
// when the bundle is absent, not validated, or still fresh. The
// invalidation is journaled as a verify-phase record with a non-zero
// exit. Re-validation never happens automatically.
func InvalidateEvidenceIfStale(paths store.Paths, beadID string, actor model.Actor) (string, error) {
	evidence, err := paths.LoadEvidence(beadID)
	if err != nil {
		return "", err
	}
	if evidence == nil || evidence.Status != model.EvidenceValidated {
		return "", nil
	}

	reasons := map[string]bool{}
	bead, err := paths.LoadBead(beadID)
	if err != nil {
		return "", err
	}
	beadHash, err := CanonicalHash(bead)
	if err != nil {
		return "", err
	}
	if evidence.ForBeadHash == nil || evidence.ForBeadHash.Hash != beadHash.Hash {
		reasons["bead hash changed"] = true
	}

	head := gitinfo.HeadRef(paths.RepoRoot)
	dirty := gitinfo.DirtyRef(paths.RepoRoot)
	if validation := lastEvidenceValidationRecord(paths, beadID); validation != nil && validation.Git != nil {
		if head != nil && validation.Git.HeadBefore != nil && *validation.Git.HeadBefore != *head {
			reasons["git head changed"] = true
		}
		if dirty != nil && validation.Git.DirtyBefore != nil && *validation.Git.DirtyBefore != *dirty {
			reasons["git dirty state changed"] = true
		}
	}

	if len(reasons) == 0 {
		return "", nil
	}

	sortedReasons := make([]string, 0, len(reasons))
	for reason := range reasons {
		sortedReasons = append(sortedReasons, reason)
	}
	reason := strings.Join(dedupeSorted(sortedReasons), "; ")

	evidence.Status = model.EvidenceInvalidated
	evidence.InvalidatedReason = &reason
	if err := store.WriteModel(paths.EvidencePath(beadID), evidence); err != nil {
		return "", err
	}

	exitCode := 1
	notes := "Evidence invalidated: " + reason
	record := BuildExecutionRecord(beadID, model.PhaseVerify, actor, RecordOptions{
		ExitCode: &exitCode,
		NotesMD:  &notes,
		Git:      &model.GitRef{HeadBefore: head, DirtyBefore: dirty},
	})
	if err := paths.AppendExecutionRecord(record); err != nil {
		return reason, err
	}
	return reason, nil
}

// lastEvidenceValidationRecord finds the most recent successful
// verify-phase record that produced the bead's evidence artifact and
// captured git state.
func lastEvidenceValidationRecord(paths store.Paths, beadID string) *model.ExecutionRecord {
	records, err := paths.ReadExecutionRecords()
	if err != nil {
		return nil
	}
	expected := fmt.Sprintf("runs/%s/evidence.json", beadID)
	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		if record.BeadID != beadID || record.Phase != model.PhaseVerify {
			continue
		}
		if record.ExitCode == nil || *record.ExitCode != 0 {
			continue
		}
		if record.Git == nil {
			continue
		}
		produced := false
		for _, ref := range record.ProducedArtifacts {
			if ref.Path == expected {
				produced = true
				break
			}
		}
		if produced {
			return record
		}
	}
	return nil
}

// CollectEvidenceSkeleton builds a collected-status bundle with one
// pending item per acceptance check, bound to the bead's current hash.
func CollectEvidenceSkeleton(bead *model.Bead, actor model.Actor) (*model.EvidenceBundle, error) {
	beadHash, err := CanonicalHash(bead)
	if err != nil {
		return nil, err
	}
	bundle := model.NewEvidenceBundle()
	bundle.Envelope = model.NewEnvelope(model.SchemaEvidence, "evidence-"+bead.BeadID, actor)
	bundle.BeadID = bead.BeadID
	bundle.ForBeadHash = beadHash
	for _, check := range bead.AcceptanceChecks {
		command := check.Command
		bundle.Items = append(bundle.Items, model.EvidenceItem{
			Name:         check.Name,
			EvidenceType: model.EvidenceTestRun,
			Command:      &command,
			Attachments:  []model.FileRef{},
		})
	}
	return bundle, nil
}
