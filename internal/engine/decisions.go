package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

// shortID returns a short unique suffix for generated artifact ids.
func shortID() string {
	return uuid.NewString()[:8]
}

// FindActiveExceptionDecision returns the most recent exception entry
// for a bead that has a non-empty summary and has not expired, or nil.
func FindActiveExceptionDecision(paths store.Paths, beadID string, now time.Time) (*model.DecisionLedgerEntry, error) {
	entries, err := paths.ReadDecisionEntries()
	if err != nil {
		return nil, err
	}
	var mostRecent *model.DecisionLedgerEntry
	for _, entry := range entries {
		if entry.DecisionType != model.DecisionException {
			continue
		}
		if entry.BeadID == nil || *entry.BeadID != beadID {
			continue
		}
		if !entry.Active(now) {
			continue
		}
		if strings.TrimSpace(entry.Summary) == "" {
			continue
		}
		if mostRecent == nil || entry.CreatedAt.After(mostRecent.CreatedAt) {
			mostRecent = entry
		}
	}
	return mostRecent, nil
}

// FindApprovalDecision returns the most recent human-authored approval
// entry with a non-empty summary for a bead, or nil.
func FindApprovalDecision(paths store.Paths, beadID string) (*model.DecisionLedgerEntry, error) {
	entries, err := paths.ReadDecisionEntries()
	if err != nil {
		return nil, err
	}
	var mostRecent *model.DecisionLedgerEntry
	for _, entry := range entries {
		if entry.DecisionType != model.DecisionApproval {
			continue
		}
		if entry.BeadID == nil || *entry.BeadID != beadID {
			continue
		}
		if entry.CreatedBy.Kind != model.ActorHuman {
			continue
		}
		if strings.TrimSpace(entry.Summary) == "" {
			continue
		}
		if mostRecent == nil || entry.CreatedAt.After(mostRecent.CreatedAt) {
			mostRecent = entry
		}
	}
	return mostRecent, nil
}

// WaivedCheckNames collects the acceptance-check names waived for a
// bead by any exception entry that is active now (non-empty summary,
// not expired).
func WaivedCheckNames(beadID string, entries []*model.DecisionLedgerEntry) map[string]bool {
	waived := map[string]bool{}
	now := time.Now()
	for _, entry := range entries {
		if entry.DecisionType != model.DecisionException {
			continue
		}
		if !entry.Active(now) {
			continue
		}
		if entry.BeadID == nil || *entry.BeadID != beadID {
			continue
		}
		for _, name := range entry.WaivedAcceptanceChecks {
			waived[name] = true
		}
	}
	return waived
}

// CreateApprovalEntry builds an approval decision for a bead.
func CreateApprovalEntry(beadID, summary string, actor model.Actor) *model.DecisionLedgerEntry {
	entry := model.NewDecisionLedgerEntry()
	entry.Envelope = model.NewEnvelope(model.SchemaDecisionEntry, fmt.Sprintf("decision-%s-%s", beadID, shortID()), actor)
	entry.BeadID = &beadID
	entry.DecisionType = model.DecisionApproval
	entry.Summary = summary
	return entry
}

// CreateAbortEntry builds the scope_change decision recorded when a
// bead is aborted; the summary is always prefixed "ABORT: ".
func CreateAbortEntry(beadID, reason string, actor model.Actor) *model.DecisionLedgerEntry {
	summary := strings.TrimSpace(reason)
	if !strings.HasPrefix(summary, "ABORT:") {
		summary = "ABORT: " + summary
	}
	entry := model.NewDecisionLedgerEntry()
	entry.Envelope = model.NewEnvelope(model.SchemaDecisionEntry, fmt.Sprintf("decision-%s-%s", beadID, shortID()), actor)
	entry.BeadID = &beadID
	entry.DecisionType = model.DecisionScopeChange
	entry.Summary = summary
	return entry
}

// CreateExceptionEntry builds an exception decision that may waive
// acceptance checks until it expires.
func CreateExceptionEntry(beadID, summary string, waived []string, expiresAt *time.Time, actor model.Actor) *model.DecisionLedgerEntry {
	entry := model.NewDecisionLedgerEntry()
	entry.Envelope = model.NewEnvelope(model.SchemaDecisionEntry, fmt.Sprintf("decision-%s-%s", beadID, shortID()), actor)
	entry.BeadID = &beadID
	entry.DecisionType = model.DecisionException
	entry.Summary = summary
	if waived != nil {
		entry.WaivedAcceptanceChecks = waived
	}
	entry.ExpiresAt = expiresAt
	return entry
}

// DecisionLink references a ledger entry from a journal record.
func DecisionLink(entry *model.DecisionLedgerEntry) model.ArtifactLink {
	name := model.SchemaDecisionEntry
	version := 1
	return model.ArtifactLink{
		ArtifactType:  "decision_ledger_entry",
		ArtifactID:    entry.ArtifactID,
		SchemaName:    &name,
		SchemaVersion: &version,
	}
}

// AppendDecisionEntry validates and appends a ledger entry.
func AppendDecisionEntry(paths store.Paths, entry *model.DecisionLedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("decision entry: %w", err)
	}
	return paths.AppendDecisionEntry(entry)
}
