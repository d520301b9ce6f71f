package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robchristie/loom/internal/engine"
	"github.com/robchristie/loom/internal/gitinfo"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

// RepoInfo describes the repository the server fronts.
type RepoInfo struct {
	RepoRoot string  `json:"repo_root"`
	GitHead  *string `json:"git_head"`
	GitDirty *bool   `json:"git_dirty"`
}

// BeadSummary is the listing row for one bead.
type BeadSummary struct {
	BeadID    string  `json:"bead_id"`
	Title     string  `json:"title"`
	BeadType  string  `json:"bead_type"`
	Status    string  `json:"status"`
	Priority  int     `json:"priority"`
	Owner     *string `json:"owner"`
	CreatedAt string  `json:"created_at"`
}

// ArtifactStatus reports whether one expected artifact exists.
type ArtifactStatus struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// BeadArtifactsIndex lists the expected artifacts of a bead.
type BeadArtifactsIndex struct {
	BeadID    string           `json:"bead_id"`
	Artifacts []ArtifactStatus `json:"artifacts"`
}

// TransitionRequest is the body of POST .../transition.
type TransitionRequest struct {
	Transition string       `json:"transition"`
	Actor      *model.Actor `json:"actor"`
}

// TransitionResponse reports one transition attempt.
type TransitionResponse struct {
	OK                  bool                   `json:"ok"`
	Notes               string                 `json:"notes"`
	RequestedTransition string                 `json:"requested_transition"`
	AppliedTransition   *string                `json:"applied_transition"`
	ExecutionRecord     *model.ExecutionRecord `json:"execution_record"`
}

// ApproveRequest is the body of POST .../approve.
type ApproveRequest struct {
	Summary string       `json:"summary"`
	Actor   *model.Actor `json:"actor"`
}

// AbortRequest is the body of POST .../abort.
type AbortRequest struct {
	Reason string       `json:"reason"`
	Actor  *model.Actor `json:"actor"`
}

// ActionResponse reports a non-transition action.
type ActionResponse struct {
	OK                bool     `json:"ok"`
	Notes             string   `json:"notes"`
	ProducedArtifacts []string `json:"produced_artifacts"`
}

func defaultActor(kind model.ActorKind) model.Actor {
	name := os.Getenv("USER")
	if name == "" {
		name = "unknown"
	}
	return model.Actor{Kind: kind, Name: name}
}

func actorOrDefault(actor *model.Actor, kind model.ActorKind) model.Actor {
	if actor != nil {
		return *actor
	}
	if kind == model.ActorSystem {
		return model.Actor{Kind: model.ActorSystem, Name: "loom-web"}
	}
	return defaultActor(kind)
}

func (s *Server) beadID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !model.ValidBeadID(id) {
		writeError(w, http.StatusBadRequest, "Invalid bead_id format")
		return "", false
	}
	return id, true
}

func queryLimit(r *http.Request, fallback, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleRepo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RepoInfo{
		RepoRoot: s.paths.RepoRoot,
		GitHead:  gitinfo.HeadRef(s.paths.RepoRoot),
		GitDirty: gitinfo.DirtyRef(s.paths.RepoRoot),
	})
}

// listBeads merges loom-managed beads in runs/ with issues not yet
// materialized from the upstream bd store.
func (s *Server) listBeads() []*model.Bead {
	byID := map[string]*model.Bead{}
	ids, err := s.paths.ListRunBeadIDs()
	if err != nil {
		s.log.Warn("list runs", "error", err)
	}
	for _, id := range ids {
		bead, err := s.paths.LoadBead(id)
		if err != nil {
			continue
		}
		byID[id] = bead
	}
	for _, bead := range s.paths.ListIssueStoreBeads() {
		if _, exists := byID[bead.BeadID]; !exists {
			byID[bead.BeadID] = bead
		}
	}
	beads := make([]*model.Bead, 0, len(byID))
	for _, bead := range byID {
		beads = append(beads, bead)
	}
	return beads
}

func (s *Server) handleListBeads(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	needle := strings.ToLower(r.URL.Query().Get("q"))
	limit := queryLimit(r, 200, 2000)

	var filtered []*model.Bead
	for _, bead := range s.listBeads() {
		if status != "" && string(bead.Status) != status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(bead.BeadID), needle) &&
			!strings.Contains(strings.ToLower(bead.Title), needle) {
			continue
		}
		filtered = append(filtered, bead)
	}
	sort.Slice(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Status != b.Status {
			return a.Status < b.Status
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	out := make([]BeadSummary, 0, len(filtered))
	for _, bead := range filtered {
		out = append(out, BeadSummary{
			BeadID:    bead.BeadID,
			Title:     bead.Title,
			BeadType:  string(bead.BeadType),
			Status:    string(bead.Status),
			Priority:  bead.Priority,
			Owner:     bead.Owner,
			CreatedAt: bead.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBead(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	bead, err := s.paths.LoadBead(id)
	if err != nil {
		var notFound *store.NotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "Bead not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bead)
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	review, err := s.paths.LoadBeadReview(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) handleGetGrounding(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	grounding, err := s.paths.LoadGrounding(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, grounding)
}

func (s *Server) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	evidence, err := s.paths.LoadEvidence(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, evidence)
}

func (s *Server) handleGetOpenSpecRef(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	ref, err := store.LoadOpenSpecRef(s.paths.OpenSpecRefPath(id))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (s *Server) handleArtifactsIndex(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	candidates := []struct {
		name string
		path string
	}{
		{"bead", s.paths.BeadPath(id)},
		{"bead_review", s.paths.ReviewPath(id)},
		{"grounding", s.paths.GroundingPath(id)},
		{"evidence", s.paths.EvidencePath(id)},
		{"openspec_ref", s.paths.OpenSpecRefPath(id)},
		{"ready_acceptance_snapshot", s.paths.ReadySnapshotPath(id)},
	}
	index := BeadArtifactsIndex{BeadID: id}
	for _, candidate := range candidates {
		_, err := os.Stat(candidate.path)
		index.Artifacts = append(index.Artifacts, ArtifactStatus{
			Name:   candidate.name,
			Path:   s.paths.Rel(candidate.path),
			Exists: err == nil,
		})
	}
	writeJSON(w, http.StatusOK, index)
}

func (s *Server) handleBeadJournal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	limit := queryLimit(r, 500, 5000)
	records, err := s.paths.ReadExecutionRecords()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var filtered []*model.ExecutionRecord
	for _, record := range records {
		if record.BeadID == id {
			filtered = append(filtered, record)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (s *Server) handleBeadDecisions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	limit := queryLimit(r, 500, 5000)
	entries, err := s.paths.ReadDecisionEntries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var filtered []*model.DecisionLedgerEntry
	for _, entry := range entries {
		if entry.BeadID != nil && *entry.BeadID == id {
			filtered = append(filtered, entry)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	actor := actorOrDefault(req.Actor, model.ActorHuman)

	result := engine.RequestTransition(s.paths, s.cfg, id, req.Transition, actor)
	phase := engine.PhaseForTransitionString(req.Transition)
	record, err := engine.RecordTransitionAttempt(s.paths, id, phase, actor, req.Transition, result, nil)
	if err != nil {
		s.log.Error("journal transition", "bead", id, "error", err)
	}

	writeJSON(w, http.StatusOK, TransitionResponse{
		OK:                  result.OK,
		Notes:               result.Notes,
		RequestedTransition: req.Transition,
		AppliedTransition:   appliedPtr(result),
		ExecutionRecord:     record,
	})
}

func appliedPtr(result engine.TransitionResult) *string {
	if !result.OK || result.AppliedTransition == "" {
		return nil
	}
	applied := result.AppliedTransition
	return &applied
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	actor := actorOrDefault(req.Actor, model.ActorHuman)
	if actor.Kind != model.ActorHuman {
		writeError(w, http.StatusConflict, "Approval must be created_by.kind == human")
		return
	}
	if strings.TrimSpace(req.Summary) == "" {
		writeError(w, http.StatusBadRequest, "summary must be non-empty")
		return
	}

	entry := engine.CreateApprovalEntry(id, req.Summary, actor)
	if err := engine.AppendDecisionEntry(s.paths, entry); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := engine.RecordDecisionAction(s.paths, entry, model.PhaseVerify, actor, "Approval recorded"); err != nil {
		s.log.Error("journal approval", "bead", id, "error", err)
	}
	writeJSON(w, http.StatusOK, ActionResponse{OK: true, Notes: "approval recorded", ProducedArtifacts: []string{}})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	var req AbortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "reason must be non-empty")
		return
	}
	actor := actorOrDefault(req.Actor, model.ActorHuman)

	entry := engine.CreateAbortEntry(id, req.Reason, actor)
	if err := engine.AppendDecisionEntry(s.paths, entry); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := engine.RecordDecisionAction(s.paths, entry, engine.DecisionActionPhase(s.paths, id), actor, "Abort requested"); err != nil {
		s.log.Error("journal abort decision", "bead", id, "error", err)
	}

	bead, err := s.paths.LoadBead(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	requested := engine.FormatTransition(bead.Status, model.StatusAbortedNeedsDiscovery)
	result := engine.RequestTransition(s.paths, s.cfg, id, requested, actor)
	record, err := engine.RecordTransitionAttempt(s.paths, id,
		engine.PhaseForTransitionString(requested), actor, requested, result,
		[]model.ArtifactLink{engine.DecisionLink(entry)})
	if err != nil {
		s.log.Error("journal abort transition", "bead", id, "error", err)
	}

	writeJSON(w, http.StatusOK, TransitionResponse{
		OK:                  result.OK,
		Notes:               result.Notes,
		RequestedTransition: requested,
		AppliedTransition:   appliedPtr(result),
		ExecutionRecord:     record,
	})
}

func (s *Server) handleGroundingGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	actor := bodyActor(r, model.ActorSystem)
	if err := engine.GenerateGroundingBundle(s.paths, id, actor); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	produced := fmt.Sprintf("runs/%s/grounding.json", id)
	if err := engine.JournalSimpleAction(s.paths, id, model.PhasePlan, actor, "Grounding generated", []string{produced}, 0); err != nil {
		s.log.Error("journal grounding", "bead", id, "error", err)
	}
	writeJSON(w, http.StatusOK, ActionResponse{OK: true, ProducedArtifacts: []string{produced}})
}

func (s *Server) handleEvidenceCollect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	actor := bodyActor(r, model.ActorSystem)
	bead, err := s.paths.LoadBead(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	bundle, err := engine.CollectEvidenceSkeleton(bead, actor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := store.WriteModel(s.paths.EvidencePath(id), bundle); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	produced := fmt.Sprintf("runs/%s/evidence.json", id)
	if err := engine.JournalSimpleAction(s.paths, id, model.PhaseVerify, actor, "Evidence skeleton collected", []string{produced}, 0); err != nil {
		s.log.Error("journal evidence collect", "bead", id, "error", err)
	}
	writeJSON(w, http.StatusOK, ActionResponse{OK: true, ProducedArtifacts: []string{produced}})
}

func (s *Server) handleEvidenceValidate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	markValidated := r.URL.Query().Get("mark_validated") != "false"

	// When the bundle on disk is human-authored, journal under that
	// human rather than the web default.
	actor := bodyActor(r, model.ActorSystem)
	if evidence, err := s.paths.LoadEvidence(id); err == nil && evidence != nil &&
		evidence.CreatedBy.Kind == model.ActorHuman {
		actor = evidence.CreatedBy
	}

	evidenceAfter, validationErrs, err := engine.ValidateEvidenceBundle(s.paths, id, markValidated)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	notes := "Evidence validated"
	exitCode := 0
	if len(validationErrs) > 0 {
		notes = strings.Join(validationErrs, "; ")
		exitCode = 1
	}
	var produced []string
	if evidenceAfter != nil {
		produced = []string{fmt.Sprintf("runs/%s/evidence.json", id)}
	}
	if err := engine.JournalSimpleAction(s.paths, id, model.PhaseVerify, actor, notes, produced, exitCode); err != nil {
		s.log.Error("journal evidence validate", "bead", id, "error", err)
	}

	responseNotes := "ok"
	if len(validationErrs) > 0 {
		responseNotes = strings.Join(validationErrs, "; ")
	}
	writeJSON(w, http.StatusOK, ActionResponse{
		OK:                len(validationErrs) == 0,
		Notes:             responseNotes,
		ProducedArtifacts: produced,
	})
}

func (s *Server) handleEvidenceInvalidate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	actor := bodyActor(r, model.ActorSystem)
	reason, err := engine.InvalidateEvidenceIfStale(s.paths, id, actor)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if reason == "" {
		reason = "not stale"
	}
	writeJSON(w, http.StatusOK, ActionResponse{OK: true, Notes: reason, ProducedArtifacts: []string{}})
}

func (s *Server) handleOpenSpecSync(w http.ResponseWriter, r *http.Request) {
	id, ok := s.beadID(w, r)
	if !ok {
		return
	}
	actor := bodyActor(r, model.ActorSystem)
	bead, err := s.paths.LoadBead(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if bead.OpenSpecRef == nil {
		writeError(w, http.StatusConflict, "Bead.openspec_ref missing")
		return
	}
	source := s.paths.OpenSpecRefSource(bead.OpenSpecRef.ArtifactID)
	ref, err := store.LoadOpenSpecRef(source)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("OpenSpecRef invalid: %v", err))
		return
	}
	if ref == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("OpenSpecRef not found: %s", source))
		return
	}
	if err := store.WriteModel(s.paths.OpenSpecRefPath(id), ref); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	produced := fmt.Sprintf("runs/%s/openspec_ref.json", id)
	if err := engine.JournalSimpleAction(s.paths, id, model.PhasePlan, actor,
		"OpenSpecRef synced into runs/<bead_id>/openspec_ref.json", []string{produced}, 0); err != nil {
		s.log.Error("journal openspec sync", "bead", id, "error", err)
	}
	writeJSON(w, http.StatusOK, ActionResponse{OK: true, ProducedArtifacts: []string{produced}})
}

// bodyActor reads an optional Actor JSON body, defaulting by kind.
func bodyActor(r *http.Request, kind model.ActorKind) model.Actor {
	var actor model.Actor
	if err := json.NewDecoder(r.Body).Decode(&actor); err == nil && actor.Kind != "" && actor.Name != "" {
		return actor
	}
	return actorOrDefault(nil, kind)
}
