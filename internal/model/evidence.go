package model

import (
	"fmt"
	"time"
)

// EvidenceType labels how a piece of evidence was produced.
type EvidenceType string

const (
	EvidenceTestRun       EvidenceType = "test_run"
	EvidenceLint          EvidenceType = "lint"
	EvidenceTypecheck     EvidenceType = "typecheck"
	EvidenceBenchmark     EvidenceType = "benchmark"
	EvidenceGoldenCompare EvidenceType = "golden_compare"
	EvidenceManualCheck   EvidenceType = "manual_check"
	EvidenceCIRun         EvidenceType = "ci_run"
)

func (t EvidenceType) IsValid() bool {
	switch t {
	case EvidenceTestRun, EvidenceLint, EvidenceTypecheck, EvidenceBenchmark,
		EvidenceGoldenCompare, EvidenceManualCheck, EvidenceCIRun:
		return true
	}
	return false
}

// EvidenceStatus is the validation state of a bundle. Only a validated
// bundle satisfies the verification gate.
type EvidenceStatus string

const (
	EvidenceCollected   EvidenceStatus = "collected"
	EvidenceValidated   EvidenceStatus = "validated"
	EvidenceInvalidated EvidenceStatus = "invalidated"
)

func (s EvidenceStatus) IsValid() bool {
	switch s {
	case EvidenceCollected, EvidenceValidated, EvidenceInvalidated:
		return true
	}
	return false
}

// EvidenceItem is one collected result: a command run, a manual check,
// or an attached artifact.
type EvidenceItem struct {
	Name         string       `json:"name"`
	EvidenceType EvidenceType `json:"evidence_type"`
	Command      *string      `json:"command"`
	ExitCode     *int         `json:"exit_code"`
	StartedAt    *time.Time   `json:"started_at"`
	FinishedAt   *time.Time   `json:"finished_at"`
	Attachments  []FileRef    `json:"attachments"`
	SummaryMD    *string      `json:"summary_md"`
}

func (i EvidenceItem) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("evidence item name is required")
	}
	if !i.EvidenceType.IsValid() {
		return fmt.Errorf("evidence item %q: invalid evidence_type %q", i.Name, i.EvidenceType)
	}
	for j, att := range i.Attachments {
		if err := att.Validate(); err != nil {
			return fmt.Errorf("evidence item %q attachments[%d]: %w", i.Name, j, err)
		}
	}
	return nil
}

// EvidenceBundle collects verification results for a bead. The
// for_bead_hash binds the bundle to the exact bead revision it was
// collected (or validated) against.
type EvidenceBundle struct {
	Envelope

	BeadID            string         `json:"bead_id"`
	ForBeadHash       *HashRef       `json:"for_bead_hash"`
	Status            EvidenceStatus `json:"status"`
	Items             []EvidenceItem `json:"items"`
	InvalidatedReason *string        `json:"invalidated_reason"`
}

// NewEvidenceBundle returns an EvidenceBundle with defaults applied
// (status collected).
func NewEvidenceBundle() *EvidenceBundle {
	return &EvidenceBundle{
		Status: EvidenceCollected,
		Items:  []EvidenceItem{},
	}
}

func (e *EvidenceBundle) Validate() error {
	if err := e.validateHeader(SchemaEvidence); err != nil {
		return err
	}
	if !ValidBeadID(e.BeadID) {
		return fmt.Errorf("invalid bead_id %q", e.BeadID)
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("invalid evidence status %q", e.Status)
	}
	if e.ForBeadHash != nil {
		if err := e.ForBeadHash.Validate(); err != nil {
			return fmt.Errorf("for_bead_hash: %w", err)
		}
	}
	for i, item := range e.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
	}
	return nil
}
