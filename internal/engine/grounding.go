package engine

import (
	"os"
	"path/filepath"

	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

// groundingSeedFiles are repo documents worth packing into a generated
// grounding bundle when they exist.
var groundingSeedFiles = []string{
	"README.md",
	"docs/loom-specification.md",
	"openspec/changes/bootstrap-agentic-sdlc-v1/proposal.md",
}

const groundingSnippetLimit = 2000

// GenerateGroundingBundle writes a fresh grounding bundle for a bead:
// curated snippets of the repo's orientation documents plus the
// default command and path policy. Regeneration overwrites in place.
func GenerateGroundingBundle(paths store.Paths, beadID string, actor model.Actor) error {
	bead, err := paths.LoadBead(beadID)
	if err != nil {
		return err
	}
	beadHash, err := CanonicalHash(bead)
	if err != nil {
		return err
	}

	bundle := model.NewGroundingBundle()
	bundle.Envelope = model.NewEnvelope(model.SchemaGrounding, "grounding-"+beadID, actor)
	bundle.BeadID = beadID
	bundle.GeneratedForBeadHash = beadHash

	for _, rel := range groundingSeedFiles {
		data, err := os.ReadFile(filepath.Join(paths.RepoRoot, rel))
		if err != nil {
			continue
		}
		snippet := string(data)
		if len(snippet) > groundingSnippetLimit {
			snippet = snippet[:groundingSnippetLimit]
		}
		bundle.Items = append(bundle.Items, model.GroundingItem{
			Kind:      model.GroundingFile,
			Title:     rel,
			ContentMD: snippet,
			FileRef:   &model.FileRef{Path: rel},
		})
	}

	bundle.AllowedCommands = []string{"go test ./..."}
	bundle.DisallowedCommands = []string{"rm -rf /"}
	bundle.ExcludedPaths = []string{"runs/"}
	summary := "Auto-generated grounding bundle"
	bundle.SummaryMD = &summary

	return store.WriteModel(paths.GroundingPath(beadID), bundle)
}
