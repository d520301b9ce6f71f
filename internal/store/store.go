package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robchristie/loom/internal/model"
)

// LoadBead reads the canonical bead state. When runs/<id>/bead.json
// does not exist yet, the bead is materialized from the upstream bd
// issue store if one is present.
func (p Paths) LoadBead(beadID string) (*model.Bead, error) {
	data, err := os.ReadFile(p.BeadPath(beadID))
	if os.IsNotExist(err) {
		return p.loadBeadFromIssueStore(beadID)
	}
	if err != nil {
		return nil, fmt.Errorf("read bead %s: %w", beadID, err)
	}
	bead := model.NewBead()
	if err := model.DecodeStrict(data, bead); err != nil {
		return nil, fmt.Errorf("bead %s: %w", beadID, err)
	}
	return bead, nil
}

// LoadBeadReview reads the sizing review; nil when absent.
func (p Paths) LoadBeadReview(beadID string) (*model.BeadReview, error) {
	data, err := os.ReadFile(p.ReviewPath(beadID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bead review %s: %w", beadID, err)
	}
	review := model.NewBeadReview()
	if err := model.DecodeStrict(data, review); err != nil {
		return nil, fmt.Errorf("bead review %s: %w", beadID, err)
	}
	return review, nil
}

// LoadGrounding reads the grounding bundle; nil when absent.
func (p Paths) LoadGrounding(beadID string) (*model.GroundingBundle, error) {
	data, err := os.ReadFile(p.GroundingPath(beadID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read grounding %s: %w", beadID, err)
	}
	grounding := model.NewGroundingBundle()
	if err := model.DecodeStrict(data, grounding); err != nil {
		return nil, fmt.Errorf("grounding %s: %w", beadID, err)
	}
	return grounding, nil
}

// LoadEvidence reads the evidence bundle; nil when absent.
func (p Paths) LoadEvidence(beadID string) (*model.EvidenceBundle, error) {
	data, err := os.ReadFile(p.EvidencePath(beadID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read evidence %s: %w", beadID, err)
	}
	evidence := model.NewEvidenceBundle()
	if err := model.DecodeStrict(data, evidence); err != nil {
		return nil, fmt.Errorf("evidence %s: %w", beadID, err)
	}
	return evidence, nil
}

// LoadOpenSpecRef reads an OpenSpecRef from an explicit path; nil when
// absent.
func LoadOpenSpecRef(path string) (*model.OpenSpecRef, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read openspec ref %s: %w", path, err)
	}
	ref := model.NewOpenSpecRef()
	if err := model.DecodeStrict(data, ref); err != nil {
		return nil, fmt.Errorf("openspec ref %s: %w", path, err)
	}
	return ref, nil
}

// WriteModel persists an artifact as pretty-printed JSON, creating the
// parent directory as needed.
func WriteModel(path string, artifact any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact); err != nil {
		return fmt.Errorf("encode artifact %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil { //nolint:gosec // artifacts are shared via git
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

// ReadySnapshot freezes the canonical acceptance-check hash when a
// bead becomes ready.
type ReadySnapshot struct {
	BeadID               string `json:"bead_id"`
	AcceptanceChecksHash string `json:"acceptance_checks_hash"`
	BeadHash             string `json:"bead_hash"`
}

// WriteReadySnapshot persists the ready-acceptance snapshot.
func (p Paths) WriteReadySnapshot(snapshot ReadySnapshot) error {
	return WriteModel(p.ReadySnapshotPath(snapshot.BeadID), snapshot)
}

// LoadReadySnapshot reads the ready-acceptance snapshot; nil when the
// bead was never marked ready.
func (p Paths) LoadReadySnapshot(beadID string) (*ReadySnapshot, error) {
	data, err := os.ReadFile(p.ReadySnapshotPath(beadID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ready snapshot %s: %w", beadID, err)
	}
	var snapshot ReadySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("ready snapshot %s: %w", beadID, err)
	}
	return &snapshot, nil
}

// LoadBoundaryRegistry resolves the registry for a bead: its explicit
// boundary_registry_ref when set and present, otherwise the default
// sdlc/boundary_registry.json. Returns the path it was read from.
func (p Paths) LoadBoundaryRegistry(bead *model.Bead) (*model.BoundaryRegistry, string, error) {
	if bead.BoundaryRegistryRef != nil {
		ref := bead.BoundaryRegistryRef
		if ref.ArtifactType != "boundary_registry" {
			return nil, "", fmt.Errorf("bead boundary_registry_ref must reference a boundary_registry artifact")
		}
		candidate := p.BoundaryRegistryRefPath(ref.ArtifactID)
		if _, err := os.Stat(candidate); err == nil {
			registry, err := loadBoundaryRegistryFile(candidate)
			if err != nil {
				return nil, "", err
			}
			return registry, candidate, nil
		}
	}
	defaultPath := p.BoundaryRegistryPath()
	if _, err := os.Stat(defaultPath); err != nil {
		return nil, "", fmt.Errorf("BoundaryRegistry not found: %s", defaultPath)
	}
	registry, err := loadBoundaryRegistryFile(defaultPath)
	if err != nil {
		return nil, "", err
	}
	return registry, defaultPath, nil
}

func loadBoundaryRegistryFile(path string) (*model.BoundaryRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundary registry %s: %w", path, err)
	}
	registry := model.NewBoundaryRegistry()
	if err := model.DecodeStrict(data, registry); err != nil {
		return nil, fmt.Errorf("boundary registry %s: %w", path, err)
	}
	return registry, nil
}

// ListRunBeadIDs returns the bead ids that have a run directory.
func (p Paths) ListRunBeadIDs() ([]string, error) {
	entries, err := os.ReadDir(p.RunsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list runs dir: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && model.ValidBeadID(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}
