package engine

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/robchristie/loom/internal/model"
)

func removeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
}

func TestComputeTouchedSubsystems(t *testing.T) {
	registry := model.NewBoundaryRegistry()
	registry.Subsystems = []model.Subsystem{
		{Name: "core", Paths: []string{"src/"}},
		{Name: "web", Paths: []string{"web/", "./assets/"}},
		{Name: "docs", Paths: []string{"docs/"}},
	}

	tests := []struct {
		name      string
		files     []string
		wantNames []string
		wantCount int
	}{
		{"none", nil, []string{}, 0},
		{"single subsystem", []string{"src/a.go", "src/b.go"}, []string{"core"}, 2},
		{"normalized prefixes", []string{"./src/a.go", "assets/logo.png"}, []string{"core", "web"}, 2},
		{"outside all subsystems", []string{"scripts/x.sh"}, []string{}, 1},
		{"multiple", []string{"src/a.go", "web/app.ts", "docs/x.md"}, []string{"core", "docs", "web"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, count := ComputeTouchedSubsystems(registry, tt.files)
			if count != tt.wantCount {
				t.Errorf("count = %d, want %d", count, tt.wantCount)
			}
			if len(names) != len(tt.wantNames) {
				t.Fatalf("names = %v, want %v", names, tt.wantNames)
			}
			for i := range names {
				if names[i] != tt.wantNames[i] {
					t.Errorf("names = %v, want %v", names, tt.wantNames)
				}
			}
		})
	}
}

func TestBoundaryViolationBlocksVerification(t *testing.T) {
	f := newFixture(t)
	beadID := "work-abc123"
	f.writeBead(t, beadID, model.BeadImplementation, model.StatusVerificationPending)
	f.writeMatchingEvidence(t, beadID, system())
	if _, errs, err := ValidateEvidenceBundle(f.paths, beadID, true); err != nil || len(errs) > 0 {
		t.Fatalf("validate: %v %v", errs, err)
	}

	// Nine changed files against a budget of eight.
	var files []string
	for i := 0; i < 9; i++ {
		files = append(files, fmt.Sprintf("src/file%d.go", i))
	}
	stubChangedFiles(t, files)

	result := f.attempt(t, beadID, "verification_pending -> verified", system())
	if result.OK {
		t.Fatal("expected boundary rejection")
	}
	for _, want := range []string{
		"Boundary violation: files_touched=9 (limit 8)",
		"touched_subsystems=core",
		"boundary_registry_hash=",
		"abort or split",
	} {
		if !strings.Contains(result.Notes, want) {
			t.Errorf("notes missing %q: %s", want, result.Notes)
		}
	}

	// The journaled attempt links the boundary registry.
	records, err := f.paths.ReadExecutionRecords()
	if err != nil {
		t.Fatal(err)
	}
	last := records[len(records)-1]
	found := false
	for _, link := range last.Links {
		if link.ArtifactType == "boundary_registry" {
			found = true
		}
	}
	if !found {
		t.Error("journal record missing boundary registry link")
	}
}

func TestBoundaryMonotonicity(t *testing.T) {
	// Raising the file budget can only turn rejections into
	// acceptances.
	f := newFixture(t)
	beadID := "work-abc123"
	f.writeBead(t, beadID, model.BeadImplementation, model.StatusVerificationPending)
	f.writeMatchingEvidence(t, beadID, system())
	if _, errs, err := ValidateEvidenceBundle(f.paths, beadID, true); err != nil || len(errs) > 0 {
		t.Fatalf("validate: %v %v", errs, err)
	}

	var files []string
	for i := 0; i < 12; i++ {
		files = append(files, fmt.Sprintf("src/file%d.go", i))
	}
	stubChangedFiles(t, files)

	tight := f.cfg
	tight.MaxFilesTouched = 8
	if result := RequestTransition(f.paths, tight, beadID, "verification_pending -> verified", system()); result.OK {
		t.Fatal("12 files must exceed a budget of 8")
	}

	loose := f.cfg
	loose.MaxFilesTouched = 20
	if result := RequestTransition(f.paths, loose, beadID, "verification_pending -> verified", system()); !result.OK {
		t.Fatalf("12 files within a budget of 20 rejected: %s", result.Notes)
	}
}

func TestDiscoveryProductionLeak(t *testing.T) {
	f := newFixture(t)
	beadID := "work-abc123"
	f.writeBead(t, beadID, model.BeadDiscovery, model.StatusSized)
	f.writeReview(t, beadID, model.EffortS, nil)
	f.writeGrounding(t, beadID)
	f.apply(t, beadID, "sized -> ready", human())

	stubChangedFiles(t, []string{"src/main.py", "docs/notes.md"})

	result := f.attempt(t, beadID, "ready -> in_progress", human())
	if result.OK {
		t.Fatal("discovery bead touching production must be rejected")
	}
	if !strings.Contains(result.Notes, "Discovery policy violation") {
		t.Errorf("notes = %q", result.Notes)
	}
	if !strings.Contains(result.Notes, "production_paths_hit=['src/main.py']") {
		t.Errorf("notes = %q, want production_paths_hit=['src/main.py']", result.Notes)
	}

	// The attempt is journaled with the boundary registry linked.
	records, err := f.paths.ReadExecutionRecords()
	if err != nil {
		t.Fatal(err)
	}
	last := records[len(records)-1]
	found := false
	for _, link := range last.Links {
		if link.ArtifactType == "boundary_registry" {
			found = true
		}
	}
	if !found {
		t.Error("journal record missing boundary registry link")
	}
}

func TestDiscoveryWithinAllowlistPasses(t *testing.T) {
	f := newFixture(t)
	beadID := "work-abc123"
	f.writeBead(t, beadID, model.BeadDiscovery, model.StatusSized)
	f.writeReview(t, beadID, model.EffortS, nil)
	f.writeGrounding(t, beadID)
	f.apply(t, beadID, "sized -> ready", human())

	stubChangedFiles(t, []string{"docs/notes.md", "experiments/probe.py"})

	result := f.attempt(t, beadID, "ready -> in_progress", human())
	if !result.OK {
		t.Fatalf("allowlisted discovery changes rejected: %s", result.Notes)
	}
}

func TestDiscoveryOutsideAllowlistRejected(t *testing.T) {
	f := newFixture(t)
	beadID := "work-abc123"
	f.writeBead(t, beadID, model.BeadDiscovery, model.StatusSized)
	f.writeReview(t, beadID, model.EffortS, nil)
	f.writeGrounding(t, beadID)
	f.apply(t, beadID, "sized -> ready", human())

	// scripts/ is neither production nor allowlisted.
	stubChangedFiles(t, []string{"scripts/probe.sh"})

	result := f.attempt(t, beadID, "ready -> in_progress", human())
	if result.OK {
		t.Fatal("changes outside the allowlist must be rejected")
	}
	if !strings.Contains(result.Notes, "outside_allowlist=['scripts/probe.sh']") {
		t.Errorf("notes = %q", result.Notes)
	}
}

func TestDiscoveryPolicyOnVerifiedEntry(t *testing.T) {
	f := newFixture(t)
	beadID := "work-abc123"
	f.writeBead(t, beadID, model.BeadDiscovery, model.StatusVerificationPending)
	f.writeMatchingEvidence(t, beadID, system())
	if _, errs, err := ValidateEvidenceBundle(f.paths, beadID, true); err != nil || len(errs) > 0 {
		t.Fatalf("validate: %v %v", errs, err)
	}

	stubChangedFiles(t, []string{"src/sneaky.go"})

	result := f.attempt(t, beadID, "verification_pending -> verified", system())
	if result.OK {
		t.Fatal("discovery bead touching production must not verify")
	}
	if !strings.Contains(result.Notes, "Discovery policy violation") {
		t.Errorf("notes = %q", result.Notes)
	}
}

func TestBoundaryRegistryMissingIsReported(t *testing.T) {
	f := newFixture(t)
	beadID := "work-abc123"
	f.writeBead(t, beadID, model.BeadImplementation, model.StatusVerificationPending)
	f.writeMatchingEvidence(t, beadID, system())
	if _, errs, err := ValidateEvidenceBundle(f.paths, beadID, true); err != nil || len(errs) > 0 {
		t.Fatalf("validate: %v %v", errs, err)
	}

	// Remove the registry: verification cannot evaluate the boundary.
	removeFile(t, f.paths.BoundaryRegistryPath())

	result := f.attempt(t, beadID, "verification_pending -> verified", system())
	if result.OK {
		t.Fatal("missing registry must block verification")
	}
	if !strings.Contains(result.Notes, "BoundaryRegistry not found") {
		t.Errorf("notes = %q", result.Notes)
	}
}
