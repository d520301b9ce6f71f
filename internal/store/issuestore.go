package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robchristie/loom/internal/model"
)

// issueStoreCandidates are the places an upstream bd issue store may
// live, in preference order.
func (p Paths) issueStoreCandidates() []string {
	return []string{
		filepath.Join(p.RepoRoot, "beads", "issues.jsonl"),
		filepath.Join(p.RepoRoot, "beads", "issues.json"),
		filepath.Join(p.RepoRoot, ".beads", "issues.jsonl"),
	}
}

func (p Paths) issueStorePath() string {
	for _, candidate := range p.issueStoreCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// loadBeadFromIssueStore materializes a draft bead from the upstream
// bd issue store when no Loom-managed bead.json exists yet.
func (p Paths) loadBeadFromIssueStore(beadID string) (*model.Bead, error) {
	path := p.issueStorePath()
	if path == "" {
		return nil, &NotFoundError{What: "bead", ID: beadID}
	}
	for _, issue := range readIssueDicts(path) {
		if id, _ := issue["id"].(string); id == beadID {
			bead := beadFromIssue(issue)
			if bead == nil {
				return nil, &NotFoundError{What: "bead", ID: beadID}
			}
			return bead, nil
		}
	}
	return nil, &NotFoundError{What: "bead", ID: beadID}
}

// ListIssueStoreBeads materializes every valid bead the upstream issue
// store knows about.
func (p Paths) ListIssueStoreBeads() []*model.Bead {
	path := p.issueStorePath()
	if path == "" {
		return nil
	}
	var beads []*model.Bead
	for _, issue := range readIssueDicts(path) {
		if bead := beadFromIssue(issue); bead != nil {
			beads = append(beads, bead)
		}
	}
	return beads
}

// NotFoundError marks a missing artifact or dependency.
type NotFoundError struct {
	What string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.What, e.ID)
}

// readIssueDicts parses a bd issue store tolerantly: the whole file is
// tried first as JSON (list, wrapper object, or single issue), then as
// JSONL with unparseable lines skipped.
func readIssueDicts(path string) []map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err == nil {
		switch v := payload.(type) {
		case []any:
			return onlyDicts(v)
		case map[string]any:
			for _, key := range []string{"issues", "items", "data"} {
				if list, ok := v[key].([]any); ok {
					return onlyDicts(list)
				}
			}
			return []map[string]any{v}
		}
	}

	var out []map[string]any
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		out = append(out, obj)
	}
	return out
}

func onlyDicts(items []any) []map[string]any {
	var out []map[string]any
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func beadFromIssue(issue map[string]any) *model.Bead {
	beadID, _ := issue["id"].(string)
	if !model.ValidBeadID(beadID) {
		return nil
	}

	createdAt := time.Now().UTC()
	for _, key := range []string{"created_at", "created"} {
		if raw, ok := issue[key].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				createdAt = t.UTC()
				break
			}
		}
	}

	bead := model.NewBead()
	bead.Envelope = model.Envelope{
		SchemaName:    model.SchemaBead,
		SchemaVersion: 1,
		ArtifactID:    beadID,
		CreatedAt:     createdAt,
		CreatedBy:     model.Actor{Kind: model.ActorSystem, Name: "bd"},
		Links:         []model.ArtifactLink{},
	}
	bead.BeadID = beadID
	bead.Title = stringField(issue, beadID, "title")
	bead.BeadType = model.BeadType(stringField(issue, string(model.BeadImplementation), "bead_type"))
	bead.Status = model.BeadStatus(stringField(issue, string(model.StatusDraft), "status"))
	bead.Priority = issuePriority(issue["priority"])
	if owner := stringField(issue, "", "owner", "assignee"); owner != "" {
		bead.Owner = &owner
	}
	bead.RequirementsMD = stringField(issue, "", "description", "body")
	bead.AcceptanceCriteriaMD = stringField(issue, "", "acceptance", "acceptance_criteria")
	bead.ContextMD = stringField(issue, "", "notes", "context")
	if err := bead.Validate(); err != nil {
		return nil
	}
	return bead
}

func stringField(issue map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		if value, ok := issue[key].(string); ok && value != "" {
			return value
		}
	}
	return fallback
}

// issuePriority maps bd priorities ("P0".."P4" or numeric) onto the
// bead range [1,5], defaulting to 3.
func issuePriority(raw any) int {
	switch v := raw.(type) {
	case string:
		if strings.HasPrefix(strings.ToUpper(v), "P") {
			if n, err := strconv.Atoi(v[1:]); err == nil {
				return clampPriority(n + 1)
			}
		}
		return 3
	case float64:
		return clampPriority(int(v))
	case int:
		return clampPriority(v)
	default:
		return 3
	}
}

func clampPriority(n int) int {
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}
