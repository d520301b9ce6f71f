package store

import (
	"context"
	"testing"
	"time"
)

func TestTailJSONLDeliversAppendsOnce(t *testing.T) {
	paths := testPaths(t)

	lines := make(chan string, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = TailJSONL(ctx, paths.JournalPath(), true, 50*time.Millisecond, func(line []byte) {
			lines <- string(line)
		})
	}()

	// Give the tailer a moment to record the (empty) starting position.
	time.Sleep(150 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := paths.AppendExecutionRecord(testRecord("work-abc123", i)); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case line := <-lines:
			if seen[line] {
				t.Errorf("line delivered twice: %s", line)
			}
			seen[line] = true
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for line %d", i)
		}
	}

	// No duplicates or extras should trickle in afterwards.
	select {
	case line := <-lines:
		t.Errorf("unexpected extra line: %s", line)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	<-done
}

func TestTailJSONLFromStartReplays(t *testing.T) {
	paths := testPaths(t)
	for i := 0; i < 2; i++ {
		if err := paths.AppendExecutionRecord(testRecord("work-abc123", i)); err != nil {
			t.Fatal(err)
		}
	}

	lines := make(chan string, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		_ = TailJSONL(ctx, paths.JournalPath(), false, 50*time.Millisecond, func(line []byte) {
			lines <- string(line)
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-lines:
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for replayed line %d", i)
		}
	}
}
