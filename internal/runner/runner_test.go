package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robchristie/loom/internal/codec"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

func testBead(t *testing.T, paths store.Paths, checks []model.AcceptanceCheck) *model.Bead {
	t.Helper()
	bead := model.NewBead()
	bead.Envelope = model.Envelope{
		SchemaName:    model.SchemaBead,
		SchemaVersion: 1,
		ArtifactID:    "work-abc123",
		CreatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CreatedBy:     model.Actor{Kind: model.ActorHuman, Name: "planner"},
		Links:         []model.ArtifactLink{},
	}
	bead.BeadID = "work-abc123"
	bead.Title = "Runner test"
	bead.BeadType = model.BeadImplementation
	bead.Status = model.StatusInProgress
	bead.AcceptanceChecks = checks
	if err := store.WriteModel(paths.BeadPath(bead.BeadID), bead); err != nil {
		t.Fatal(err)
	}
	return bead
}

func systemActor() model.Actor {
	return model.Actor{Kind: model.ActorSystem, Name: "loom"}
}

func TestRunAcceptanceChecksPassing(t *testing.T) {
	paths := store.NewPaths(t.TempDir())
	bead := testBead(t, paths, []model.AcceptanceCheck{
		{Name: "echo", Command: "echo ok", ExpectExitCode: 0, ExpectedOutputs: []model.FileRef{}},
	})

	result, err := RunAcceptanceChecks(context.Background(), paths, bead, systemActor(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit = %d, want 0", result.ExitCode)
	}
	if len(result.Evidence.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(result.Evidence.Items))
	}
	item := result.Evidence.Items[0]
	if item.ExitCode == nil || *item.ExitCode != 0 {
		t.Errorf("item exit = %v", item.ExitCode)
	}
	if item.StartedAt == nil || item.FinishedAt == nil {
		t.Error("item missing timestamps")
	}

	// Output captured to the per-check log, hash attached.
	logPath := filepath.Join(paths.RepoRoot, "runs", "work-abc123", "evidence", "echo.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if string(data) != "ok\n" {
		t.Errorf("log = %q", data)
	}
	if len(item.Attachments) == 0 || item.Attachments[0].ContentHash == nil ||
		item.Attachments[0].ContentHash.Hash != codec.SHA256HexBytes(data) {
		t.Error("log attachment hash mismatch")
	}

	// Bundle is persisted and bound to the bead hash.
	loaded, err := paths.LoadEvidence("work-abc123")
	if err != nil {
		t.Fatal(err)
	}
	beadHash, err := codec.SHA256Hex(bead)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ForBeadHash == nil || loaded.ForBeadHash.Hash != beadHash {
		t.Error("bundle not bound to bead hash")
	}
}

func TestRunAcceptanceChecksFailureAggregates(t *testing.T) {
	paths := store.NewPaths(t.TempDir())
	bead := testBead(t, paths, []model.AcceptanceCheck{
		{Name: "good", Command: "true", ExpectExitCode: 0, ExpectedOutputs: []model.FileRef{}},
		{Name: "bad", Command: "false", ExpectExitCode: 0, ExpectedOutputs: []model.FileRef{}},
	})

	result, err := RunAcceptanceChecks(context.Background(), paths, bead, systemActor(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 1 {
		t.Errorf("exit = %d, want 1 when any check fails", result.ExitCode)
	}
	if got := *result.Evidence.Items[1].ExitCode; got != 1 {
		t.Errorf("bad check exit = %d, want 1", got)
	}
}

func TestRunAcceptanceChecksExpectedNonZero(t *testing.T) {
	paths := store.NewPaths(t.TempDir())
	bead := testBead(t, paths, []model.AcceptanceCheck{
		{Name: "wants-one", Command: "exit 1", ExpectExitCode: 1, ExpectedOutputs: []model.FileRef{}},
	})

	result, err := RunAcceptanceChecks(context.Background(), paths, bead, systemActor(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit = %d, want 0 when the non-zero code was expected", result.ExitCode)
	}
}

func TestRunAcceptanceChecksTimeout(t *testing.T) {
	paths := store.NewPaths(t.TempDir())
	timeout := 1
	bead := testBead(t, paths, []model.AcceptanceCheck{
		{Name: "slow", Command: "sleep 5", TimeoutSeconds: &timeout, ExpectExitCode: 0, ExpectedOutputs: []model.FileRef{}},
	})

	start := time.Now()
	result, err := RunAcceptanceChecks(context.Background(), paths, bead, systemActor(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("timeout not enforced: took %v", elapsed)
	}
	if result.ExitCode != 1 {
		t.Errorf("exit = %d, want 1 for a timed-out check", result.ExitCode)
	}
	item := result.Evidence.Items[0]
	if item.ExitCode == nil || *item.ExitCode == 0 {
		t.Errorf("item exit = %v, want non-zero", item.ExitCode)
	}
}

func TestRunAcceptanceChecksExtraAttachments(t *testing.T) {
	paths := store.NewPaths(t.TempDir())
	bead := testBead(t, paths, nil)

	extra := []model.FileRef{{Path: "notes/observations.md"}}
	result, err := RunAcceptanceChecks(context.Background(), paths, bead, systemActor(), extra)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Evidence.Items) != 1 || result.Evidence.Items[0].Name != "agent:attachments" {
		t.Errorf("items = %+v", result.Evidence.Items)
	}
}
