package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func testActor() Actor {
	return Actor{Kind: ActorHuman, Name: "reviewer"}
}

func testEnvelope(schemaName, artifactID string) Envelope {
	return Envelope{
		SchemaName:    schemaName,
		SchemaVersion: 1,
		ArtifactID:    artifactID,
		CreatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CreatedBy:     testActor(),
		Links:         []ArtifactLink{},
	}
}

func validArtifacts() map[string]Validator {
	bead := NewBead()
	bead.Envelope = testEnvelope(SchemaBead, "work-abc123")
	bead.BeadID = "work-abc123"
	bead.Title = "Implement the widget"
	bead.BeadType = BeadImplementation
	bead.Status = StatusDraft

	review := NewBeadReview()
	review.Envelope = testEnvelope(SchemaBeadReview, "review-work-abc123")
	review.BeadID = "work-abc123"
	review.EffortBucket = EffortM

	grounding := NewGroundingBundle()
	grounding.Envelope = testEnvelope(SchemaGrounding, "grounding-work-abc123")
	grounding.BeadID = "work-abc123"

	evidence := NewEvidenceBundle()
	evidence.Envelope = testEnvelope(SchemaEvidence, "evidence-work-abc123")
	evidence.BeadID = "work-abc123"

	record := NewExecutionRecord()
	record.Envelope = testEnvelope(SchemaExecRecord, "exec-work-abc123-1")
	record.BeadID = "work-abc123"
	record.Phase = PhasePlan

	decision := NewDecisionLedgerEntry()
	decision.Envelope = testEnvelope(SchemaDecisionEntry, "decision-work-abc123-1")
	decision.DecisionType = DecisionApproval
	decision.Summary = "APPROVAL: ok"

	registry := NewBoundaryRegistry()
	registry.Envelope = testEnvelope(SchemaBoundary, "boundary-default")
	registry.RegistryName = "default"
	registry.Subsystems = []Subsystem{{Name: "core", Paths: []string{"src/"}, Invariants: []string{}}}

	ref := NewOpenSpecRef()
	ref.Envelope = testEnvelope(SchemaOpenSpecRef, "spec-change-1")
	ref.ChangeID = "change-1"
	ref.State = SpecApproved
	ref.Path = "openspec/changes/change-1"

	return map[string]Validator{
		SchemaBead:          bead,
		SchemaBeadReview:    review,
		SchemaGrounding:     grounding,
		SchemaEvidence:      evidence,
		SchemaExecRecord:    record,
		SchemaDecisionEntry: decision,
		SchemaBoundary:      registry,
		SchemaOpenSpecRef:   ref,
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	artifacts := validArtifacts()
	for _, entry := range Registry() {
		t.Run(entry.Key.String(), func(t *testing.T) {
			artifact, ok := artifacts[entry.Key.Name]
			if !ok {
				t.Fatalf("no fixture for %s", entry.Key.Name)
			}
			data, err := json.Marshal(artifact)
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := DecodeArtifact(data)
			if err != nil {
				t.Fatalf("DecodeArtifact: %v", err)
			}
			if decoded == nil {
				t.Fatal("DecodeArtifact returned nil")
			}
		})
	}
}

func TestUnknownTopLevelFieldRejected(t *testing.T) {
	artifacts := validArtifacts()
	for _, entry := range Registry() {
		t.Run(entry.Key.String(), func(t *testing.T) {
			data, err := json.Marshal(artifacts[entry.Key.Name])
			if err != nil {
				t.Fatal(err)
			}
			var payload map[string]any
			if err := json.Unmarshal(data, &payload); err != nil {
				t.Fatal(err)
			}
			payload["bogus_field"] = true
			withExtra, err := json.Marshal(payload)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := DecodeArtifact(withExtra); err == nil {
				t.Error("expected unknown field to fail validation")
			}
		})
	}
}

func TestDecodeArtifactUnknownSchema(t *testing.T) {
	if _, err := DecodeArtifact([]byte(`{"schema_name":"sdlc.nope","schema_version":1}`)); err == nil {
		t.Error("expected unknown schema_name to fail")
	}
	if _, err := DecodeArtifact([]byte(`{"schema_version":1}`)); err == nil {
		t.Error("expected missing schema_name to fail")
	}
	if _, err := DecodeArtifact([]byte(`{"schema_name":"sdlc.bead","schema_version":9}`)); err == nil {
		t.Error("expected unknown schema_version to fail")
	}
}

func TestValidBeadID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"work-abc123", true},
		{"work-a1", true},
		{"work-abc123.1", true},
		{"work-abc123.sub9", true},
		{"work-", false},
		{"work-ABC", false},
		{"task-abc123", false},
		{"work-abc.def.ghi", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := ValidBeadID(tt.id); got != tt.want {
				t.Errorf("ValidBeadID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestBeadValidation(t *testing.T) {
	base := func() *Bead {
		bead := validArtifacts()[SchemaBead].(*Bead)
		return bead
	}

	tests := []struct {
		name    string
		mutate  func(*Bead)
		wantErr string
	}{
		{"valid", func(*Bead) {}, ""},
		{"artifact id too short", func(b *Bead) { b.ArtifactID = "ab" }, "6-128"},
		{"bad status", func(b *Bead) { b.Status = "paused" }, "invalid status"},
		{"bad type", func(b *Bead) { b.BeadType = "spike" }, "invalid bead_type"},
		{"priority low", func(b *Bead) { b.Priority = 0 }, "out of range"},
		{"priority high", func(b *Bead) { b.Priority = 6 }, "out of range"},
		{"bad profile", func(b *Bead) { b.ExecutionProfile = "prod" }, "invalid execution_profile"},
		{"bad actor kind", func(b *Bead) { b.CreatedBy.Kind = "robot" }, "actor kind"},
		{"missing title", func(b *Bead) { b.Title = "" }, "title is required"},
		{
			"duplicate check names",
			func(b *Bead) {
				b.AcceptanceChecks = []AcceptanceCheck{
					{Name: "run", Command: "run", ExpectedOutputs: []FileRef{}},
					{Name: "run", Command: "run --again", ExpectedOutputs: []FileRef{}},
				}
			},
			"duplicate acceptance check",
		},
		{"bad dependency id", func(b *Bead) { b.DependsOn = []string{"nope"} }, "invalid bead id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bead := base()
			tt.mutate(bead)
			err := bead.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestBeadDecodeAppliesDefaults(t *testing.T) {
	payload := `{
		"schema_name": "sdlc.bead",
		"schema_version": 1,
		"artifact_id": "work-abc123",
		"created_at": "2025-06-01T12:00:00Z",
		"created_by": {"kind": "human", "name": "reviewer", "email": null},
		"links": [],
		"bead_id": "work-abc123",
		"title": "Defaults",
		"bead_type": "implementation",
		"status": "draft",
		"owner": null,
		"openspec_ref": null,
		"boundary_registry_ref": null,
		"requirements_md": "",
		"acceptance_criteria_md": "",
		"context_md": "",
		"acceptance_checks": [],
		"depends_on": [],
		"max_elapsed_minutes": null,
		"max_interventions": null
	}`
	bead := NewBead()
	if err := DecodeStrict([]byte(payload), bead); err != nil {
		t.Fatalf("DecodeStrict: %v", err)
	}
	if bead.Priority != 3 {
		t.Errorf("priority default = %d, want 3", bead.Priority)
	}
	if bead.ExecutionProfile != ProfileSandbox {
		t.Errorf("execution_profile default = %q, want sandbox", bead.ExecutionProfile)
	}
}

func TestDecisionEntryActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	entry := NewDecisionLedgerEntry()
	entry.Summary = "exception granted"
	if !entry.Active(now) {
		t.Error("entry without expiry should be active")
	}
	entry.ExpiresAt = &future
	if !entry.Active(now) {
		t.Error("entry expiring in the future should be active")
	}
	entry.ExpiresAt = &past
	if entry.Active(now) {
		t.Error("expired entry should be inactive")
	}
	entry.ExpiresAt = nil
	entry.Summary = ""
	if entry.Active(now) {
		t.Error("entry with empty summary should be inactive")
	}
}

func TestExportSchemas(t *testing.T) {
	dir := t.TempDir()
	written, err := ExportSchemas(dir)
	if err != nil {
		t.Fatalf("ExportSchemas: %v", err)
	}
	// One file per registered schema plus the index.
	if len(written) != len(Registry())+1 {
		t.Errorf("wrote %d files, want %d", len(written), len(Registry())+1)
	}
	doc := SchemaDocument(Registry()[0])
	if doc["title"] != "sdlc.bead.v1" {
		t.Errorf("schema title = %v", doc["title"])
	}
	if doc["additionalProperties"] != false {
		t.Error("schema must forbid additional properties")
	}
	properties, ok := doc["properties"].(map[string]any)
	if !ok || properties["bead_id"] == nil {
		t.Error("bead schema missing bead_id property")
	}
}
