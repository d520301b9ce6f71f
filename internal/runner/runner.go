// Package runner executes a bead's acceptance checks as subprocesses
// and collects the results into an EvidenceBundle. Each check runs
// under its own timeout; output is captured to a per-check log whose
// content hash is attached as evidence.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/robchristie/loom/internal/codec"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

// Result summarizes one evidence-collection run.
type Result struct {
	Evidence      *model.EvidenceBundle
	ExitCode      int
	Commands      []string
	ProducedPaths []string
}

// RunAcceptanceChecks executes every acceptance check of a bead and
// writes the resulting bundle to runs/<bead_id>/evidence.json. A check
// exceeding its timeout_seconds counts as a failed run. ExitCode is 0
// only when every check met its expected exit code.
func RunAcceptanceChecks(ctx context.Context, paths store.Paths, bead *model.Bead, actor model.Actor, extraAttachments []model.FileRef) (*Result, error) {
	logDir := paths.EvidenceLogDir(bead.BeadID)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}

	beadHash, err := codec.SHA256Hex(bead)
	if err != nil {
		return nil, fmt.Errorf("hash bead: %w", err)
	}

	result := &Result{}
	bundle := model.NewEvidenceBundle()
	bundle.Envelope = model.NewEnvelope(model.SchemaEvidence, "evidence-"+bead.BeadID, actor)
	bundle.BeadID = bead.BeadID
	bundle.ForBeadHash = model.NewHashRef(beadHash)

	for _, check := range bead.AcceptanceChecks {
		item, logRel := runCheck(ctx, paths, bead.BeadID, check)
		bundle.Items = append(bundle.Items, item)
		result.Commands = append(result.Commands, check.Command)
		result.ProducedPaths = append(result.ProducedPaths, logRel)
		if item.ExitCode == nil || *item.ExitCode != check.ExpectExitCode {
			result.ExitCode = 1
		}
	}

	if len(extraAttachments) > 0 {
		bundle.Items = append(bundle.Items, model.EvidenceItem{
			Name:         "agent:attachments",
			EvidenceType: model.EvidenceTestRun,
			Attachments:  extraAttachments,
		})
	}

	if err := store.WriteModel(paths.EvidencePath(bead.BeadID), bundle); err != nil {
		return nil, err
	}
	result.ProducedPaths = append(result.ProducedPaths, fmt.Sprintf("runs/%s/evidence.json", bead.BeadID))
	result.Evidence = bundle
	return result, nil
}

// runCheck executes one check and returns its evidence item plus the
// repo-relative log path.
func runCheck(ctx context.Context, paths store.Paths, beadID string, check model.AcceptanceCheck) (model.EvidenceItem, string) {
	startedAt := time.Now().UTC()

	runCtx := ctx
	var cancel context.CancelFunc
	if check.TimeoutSeconds != nil && *check.TimeoutSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(*check.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	cwd := paths.RepoRoot
	if check.Cwd != nil && *check.Cwd != "" {
		cwd = filepath.Join(paths.RepoRoot, *check.Cwd)
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", check.Command)
	cmd.Dir = cwd
	// Once the context kills the shell, stop waiting on output pipes a
	// surviving child process may still hold open.
	cmd.WaitDelay = time.Second
	output, runErr := cmd.CombinedOutput()
	finishedAt := time.Now().UTC()

	exitCode := 0
	if runErr != nil {
		exitCode = -1
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}
	// A timeout surfaces as a killed process; report it as non-zero so
	// the check counts as failed.
	if runCtx.Err() == context.DeadlineExceeded {
		exitCode = -1
	}

	logRel := fmt.Sprintf("runs/%s/evidence/%s.log", beadID, check.Name)
	logPath := filepath.Join(paths.RepoRoot, filepath.FromSlash(logRel))
	_ = os.WriteFile(logPath, output, 0644) //nolint:gosec // logs are shared artifacts

	attachments := []model.FileRef{{
		Path:        logRel,
		ContentHash: model.NewHashRef(codec.SHA256HexBytes(output)),
	}}
	for _, expected := range check.ExpectedOutputs {
		attachments = append(attachments, fileRefWithHash(paths, expected.Path))
	}

	command := check.Command
	return model.EvidenceItem{
		Name:         check.Name,
		EvidenceType: model.EvidenceTestRun,
		Command:      &command,
		ExitCode:     &exitCode,
		StartedAt:    &startedAt,
		FinishedAt:   &finishedAt,
		Attachments:  attachments,
	}, logRel
}

// fileRefWithHash pins a repo-relative path to its current content, or
// leaves the hash empty when the file does not exist.
func fileRefWithHash(paths store.Paths, rel string) model.FileRef {
	data, err := os.ReadFile(filepath.Join(paths.RepoRoot, filepath.FromSlash(rel)))
	if err != nil {
		return model.FileRef{Path: rel}
	}
	return model.FileRef{Path: rel, ContentHash: model.NewHashRef(codec.SHA256HexBytes(data))}
}
