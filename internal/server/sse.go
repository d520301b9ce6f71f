package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robchristie/loom/internal/store"
)

// sseFrame is one event ready to flush to the client.
type sseFrame struct {
	event string
	data  []byte
}

// handleEvents streams journal and decision-ledger appends as SSE:
//
//	event: execution_record   data: <json>
//	event: decision_entry     data: <json>
//
// Query params: bead_id filters to one bead; start_at_end=false
// replays existing lines. Keep-alive comments go out every 15s.
// Within one connection no line is delivered twice: each log is tailed
// by position.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	beadID := r.URL.Query().Get("bead_id")
	startAtEnd := true
	if raw := r.URL.Query().Get("start_at_end"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			startAtEnd = parsed
		}
	}
	pollEvery := 500 * time.Millisecond
	if raw := r.URL.Query().Get("poll_seconds"); raw != "" {
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds >= 0.1 && seconds <= 5 {
			pollEvery = time.Duration(seconds * float64(time.Second))
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// A small hello frame helps some clients commit to the stream.
	var writeMu sync.Mutex
	writeFrame := func(frame sseFrame) {
		writeMu.Lock()
		defer writeMu.Unlock()
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.event, frame.data)
		flusher.Flush()
	}
	writeFrame(sseFrame{event: "hello", data: []byte("{}")})

	frames := make(chan sseFrame, 64)
	ctx := r.Context()

	group, groupCtx := errgroup.WithContext(ctx)
	tail := func(path, eventName string) func() error {
		return func() error {
			return store.TailJSONL(groupCtx, path, startAtEnd, pollEvery, func(line []byte) {
				if beadID != "" {
					if filtered, ok := filterLineByBead(line, beadID); ok {
						select {
						case frames <- sseFrame{event: eventName, data: filtered}:
						case <-groupCtx.Done():
						}
					}
					return
				}
				data := append([]byte(nil), line...)
				select {
				case frames <- sseFrame{event: eventName, data: data}:
				case <-groupCtx.Done():
				}
			})
		}
	}
	group.Go(tail(s.paths.JournalPath(), "execution_record"))
	group.Go(tail(s.paths.DecisionLedgerPath(), "decision_entry"))

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = group.Wait()
			return
		case frame := <-frames:
			writeFrame(frame)
		case <-keepAlive.C:
			writeMu.Lock()
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
			writeMu.Unlock()
		}
	}
}

// filterLineByBead parses the minimal JSON needed to match the bead_id
// and returns a compact re-serialization when it matches.
func filterLineByBead(line []byte, beadID string) ([]byte, bool) {
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		return nil, false
	}
	if id, _ := obj["bead_id"].(string); id != beadID {
		return nil, false
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, false
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), true
}
