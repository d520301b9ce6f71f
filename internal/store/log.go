package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/robchristie/loom/internal/model"
)

// appendLine serializes one value as a single JSONL line and appends
// it under an advisory file lock. The (encode, write, flush) sequence
// runs entirely inside the lock so readers never observe a partial
// line, even with multiple processes writing the same repository.
func appendLine(path, lockPath string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0750); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	var line bytes.Buffer
	enc := json.NewEncoder(&line)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}

	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire log lock %s: %w", lockPath, err)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644) //nolint:gosec // logs are shared via git
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(line.Bytes()); err != nil {
		return fmt.Errorf("append log %s: %w", path, err)
	}
	return f.Sync()
}

// AppendExecutionRecord appends one record to runs/journal.jsonl.
func (p Paths) AppendExecutionRecord(record *model.ExecutionRecord) error {
	return appendLine(p.JournalPath(), p.JournalLockPath(), record)
}

// AppendDecisionEntry appends one entry to decision_ledger.jsonl.
func (p Paths) AppendDecisionEntry(entry *model.DecisionLedgerEntry) error {
	return appendLine(p.DecisionLedgerPath(), p.DecisionLedgerLockPath(), entry)
}

// readLines returns the complete lines of a JSONL file. Empty lines
// are skipped. A trailing line that does not parse is tolerated (it
// may still be mid-write); a malformed line elsewhere is an error.
func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, []byte(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	return lines, nil
}

// ReadExecutionRecords parses the journal in append order.
func (p Paths) ReadExecutionRecords() ([]*model.ExecutionRecord, error) {
	lines, err := readLines(p.JournalPath())
	if err != nil {
		return nil, err
	}
	var records []*model.ExecutionRecord
	for i, line := range lines {
		record := model.NewExecutionRecord()
		if err := model.DecodeStrict(line, record); err != nil {
			if i == len(lines)-1 {
				// Partially written tail line; a re-read will see it whole.
				break
			}
			return nil, fmt.Errorf("journal line %d: %w", i+1, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// ReadDecisionEntries parses the decision ledger in append order.
func (p Paths) ReadDecisionEntries() ([]*model.DecisionLedgerEntry, error) {
	lines, err := readLines(p.DecisionLedgerPath())
	if err != nil {
		return nil, err
	}
	var entries []*model.DecisionLedgerEntry
	for i, line := range lines {
		entry := model.NewDecisionLedgerEntry()
		if err := model.DecodeStrict(line, entry); err != nil {
			if i == len(lines)-1 {
				break
			}
			return nil, fmt.Errorf("decision ledger line %d: %w", i+1, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
