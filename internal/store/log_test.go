package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/robchristie/loom/internal/model"
)

func testPaths(t *testing.T) Paths {
	t.Helper()
	return NewPaths(t.TempDir())
}

func testRecord(beadID string, n int) *model.ExecutionRecord {
	record := model.NewExecutionRecord()
	record.Envelope = model.Envelope{
		SchemaName:    model.SchemaExecRecord,
		SchemaVersion: 1,
		ArtifactID:    fmt.Sprintf("exec-%s-%06d", beadID, n),
		CreatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CreatedBy:     model.Actor{Kind: model.ActorSystem, Name: "loom"},
		Links:         []model.ArtifactLink{},
	}
	record.BeadID = beadID
	record.Phase = model.PhaseImplement
	return record
}

func TestJournalAppendAndRead(t *testing.T) {
	paths := testPaths(t)
	for i := 0; i < 5; i++ {
		if err := paths.AppendExecutionRecord(testRecord("work-abc123", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	records, err := paths.ReadExecutionRecords()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("read %d records, want 5", len(records))
	}
	for i, record := range records {
		want := fmt.Sprintf("exec-work-abc123-%06d", i)
		if record.ArtifactID != want {
			t.Errorf("record %d out of order: %s", i, record.ArtifactID)
		}
	}
}

func TestJournalConcurrentAppendsParse(t *testing.T) {
	paths := testPaths(t)
	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				record := testRecord("work-abc123", w*perWriter+i)
				if err := paths.AppendExecutionRecord(record); err != nil {
					t.Errorf("writer %d append %d: %v", w, i, err)
				}
			}
		}(w)
	}
	wg.Wait()

	// Every line must be one complete JSON object.
	lines, err := readLines(paths.JournalPath())
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != writers*perWriter {
		t.Fatalf("got %d lines, want %d", len(lines), writers*perWriter)
	}
	for i, line := range lines {
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i+1, err)
		}
	}
}

func TestReadersTolerateBlankAndPartialLines(t *testing.T) {
	paths := testPaths(t)
	if err := paths.AppendExecutionRecord(testRecord("work-abc123", 1)); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(paths.JournalPath(), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	// A blank line and a partially written tail line.
	if _, err := f.WriteString("\n{\"schema_name\":\"sdlc.execution_rec"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	records, err := paths.ReadExecutionRecords()
	if err != nil {
		t.Fatalf("read with partial tail: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("read %d records, want 1", len(records))
	}
}

func TestDecisionLedgerAppendAndRead(t *testing.T) {
	paths := testPaths(t)
	beadID := "work-abc123"
	entry := model.NewDecisionLedgerEntry()
	entry.Envelope = model.Envelope{
		SchemaName:    model.SchemaDecisionEntry,
		SchemaVersion: 1,
		ArtifactID:    "decision-work-abc123-1",
		CreatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CreatedBy:     model.Actor{Kind: model.ActorHuman, Name: "reviewer"},
		Links:         []model.ArtifactLink{},
	}
	entry.BeadID = &beadID
	entry.DecisionType = model.DecisionApproval
	entry.Summary = "APPROVAL: ok"

	if err := paths.AppendDecisionEntry(entry); err != nil {
		t.Fatal(err)
	}
	entries, err := paths.ReadDecisionEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("read %d entries, want 1", len(entries))
	}
	if entries[0].Summary != "APPROVAL: ok" {
		t.Errorf("summary = %q", entries[0].Summary)
	}
}

func TestReadMissingLogs(t *testing.T) {
	paths := testPaths(t)
	records, err := paths.ReadExecutionRecords()
	if err != nil || records != nil {
		t.Errorf("missing journal: records=%v err=%v", records, err)
	}
	entries, err := paths.ReadDecisionEntries()
	if err != nil || entries != nil {
		t.Errorf("missing ledger: entries=%v err=%v", entries, err)
	}
}
