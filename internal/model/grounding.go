package model

import "fmt"

// GroundingKind labels what a grounding item carries.
type GroundingKind string

const (
	GroundingFile    GroundingKind = "file"
	GroundingAPI     GroundingKind = "api"
	GroundingPattern GroundingKind = "pattern"
	GroundingCommand GroundingKind = "command"
	GroundingNote    GroundingKind = "note"
)

func (k GroundingKind) IsValid() bool {
	switch k {
	case GroundingFile, GroundingAPI, GroundingPattern, GroundingCommand, GroundingNote:
		return true
	}
	return false
}

// GroundingItem is one curated snippet, pattern, or note handed to the
// implementation attempt.
type GroundingItem struct {
	Kind      GroundingKind `json:"kind"`
	Title     string        `json:"title"`
	ContentMD string        `json:"content_md"`
	FileRef   *FileRef      `json:"file_ref"`
}

func (i GroundingItem) Validate() error {
	if !i.Kind.IsValid() {
		return fmt.Errorf("invalid grounding item kind %q", i.Kind)
	}
	if i.Title == "" {
		return fmt.Errorf("grounding item title is required")
	}
	if i.FileRef != nil {
		if err := i.FileRef.Validate(); err != nil {
			return fmt.Errorf("grounding item %q: %w", i.Title, err)
		}
	}
	return nil
}

// GroundingBundle is the context pack required before a bead may start:
// curated snippets plus the command and path policy for the attempt.
type GroundingBundle struct {
	Envelope

	BeadID               string   `json:"bead_id"`
	GeneratedForBeadHash *HashRef `json:"generated_for_bead_hash"`

	Items []GroundingItem `json:"items"`

	AllowedCommands    []string `json:"allowed_commands"`
	DisallowedCommands []string `json:"disallowed_commands"`
	ExcludedPaths      []string `json:"excluded_paths"`

	SummaryMD *string `json:"summary_md"`
}

// NewGroundingBundle returns a GroundingBundle with slice defaults.
func NewGroundingBundle() *GroundingBundle {
	return &GroundingBundle{
		Items:              []GroundingItem{},
		AllowedCommands:    []string{},
		DisallowedCommands: []string{},
		ExcludedPaths:      []string{},
	}
}

func (g *GroundingBundle) Validate() error {
	if err := g.validateHeader(SchemaGrounding); err != nil {
		return err
	}
	if !ValidBeadID(g.BeadID) {
		return fmt.Errorf("invalid bead_id %q", g.BeadID)
	}
	for i, item := range g.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
	}
	if g.GeneratedForBeadHash != nil {
		if err := g.GeneratedForBeadHash.Validate(); err != nil {
			return fmt.Errorf("generated_for_bead_hash: %w", err)
		}
	}
	return nil
}
