package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robchristie/loom/internal/config"
	"github.com/robchristie/loom/internal/gitinfo"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

// BoundaryEvaluation is one resolved look at the blast radius of a
// bead: the registry in force, the files the VCS reports changed, and
// the subsystems those files land in.
type BoundaryEvaluation struct {
	Registry           *model.BoundaryRegistry
	RegistryHash       *model.HashRef
	RegistryPath       string
	TouchedSubsystems  []string
	FilesTouched       int
	ProductionPrefixes []string
}

// NormalizePrefix trims leading "./" so prefix matching is uniform.
func NormalizePrefix(path string) string {
	return strings.TrimLeft(path, "./")
}

// ComputeTouchedSubsystems attributes each changed file to every
// subsystem whose prefix matches and returns the sorted subsystem
// names plus the file count.
func ComputeTouchedSubsystems(registry *model.BoundaryRegistry, changedFiles []string) ([]string, int) {
	touched := map[string]bool{}
	count := 0
	for _, file := range changedFiles {
		count++
		path := NormalizePrefix(file)
		for _, subsystem := range registry.Subsystems {
			for _, prefix := range subsystem.Paths {
				normalized := NormalizePrefix(prefix)
				if normalized == "" {
					continue
				}
				if strings.HasPrefix(path, normalized) {
					touched[subsystem.Name] = true
					break
				}
			}
		}
	}
	names := make([]string, 0, len(touched))
	for name := range touched {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, count
}

// ProductionPrefixes flattens the registry's subsystem prefixes.
func ProductionPrefixes(registry *model.BoundaryRegistry) []string {
	set := map[string]bool{}
	for _, subsystem := range registry.Subsystems {
		for _, prefix := range subsystem.Paths {
			normalized := NormalizePrefix(prefix)
			if normalized != "" {
				set[normalized] = true
			}
		}
	}
	prefixes := make([]string, 0, len(set))
	for prefix := range set {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// DetectChangedFiles probes the VCS for the working diff. It is a
// variable so tests can substitute a fixed file list.
var DetectChangedFiles = func(repoRoot string) []string {
	return gitinfo.ChangedFiles(repoRoot, "")
}

// EvaluateBoundary loads the registry for a bead and scores the given
// changed files against it. When changedFiles is nil the VCS diff is
// probed.
func EvaluateBoundary(paths store.Paths, bead *model.Bead, changedFiles []string) (*BoundaryEvaluation, []string, error) {
	registry, registryPath, err := paths.LoadBoundaryRegistry(bead)
	if err != nil {
		return nil, nil, err
	}
	registryHash, err := CanonicalHash(registry)
	if err != nil {
		return nil, nil, err
	}
	if changedFiles == nil {
		changedFiles = DetectChangedFiles(paths.RepoRoot)
	}
	touched, count := ComputeTouchedSubsystems(registry, changedFiles)
	return &BoundaryEvaluation{
		Registry:           registry,
		RegistryHash:       registryHash,
		RegistryPath:       registryPath,
		TouchedSubsystems:  touched,
		FilesTouched:       count,
		ProductionPrefixes: ProductionPrefixes(registry),
	}, changedFiles, nil
}

// BoundaryLink builds the artifact link attached to every journal
// record produced by a boundary-checked transition.
func BoundaryLink(registry *model.BoundaryRegistry) model.ArtifactLink {
	name := model.SchemaBoundary
	version := 1
	return model.ArtifactLink{
		ArtifactType:  "boundary_registry",
		ArtifactID:    registry.ArtifactID,
		SchemaName:    &name,
		SchemaVersion: &version,
	}
}

// BoundaryViolationNotes renders the single-line budget violation with
// the counts, limits, touched subsystems, and registry hash.
func BoundaryViolationNotes(eval *BoundaryEvaluation, maxFiles, maxSubsystems int) string {
	parts := []string{
		fmt.Sprintf("Boundary violation: files_touched=%d (limit %d)", eval.FilesTouched, maxFiles),
		fmt.Sprintf("subsystems_touched=%d (limit %d)", len(eval.TouchedSubsystems), maxSubsystems),
	}
	if len(eval.TouchedSubsystems) > 0 {
		parts = append(parts, "touched_subsystems="+strings.Join(eval.TouchedSubsystems, ", "))
	}
	parts = append(parts, "boundary_registry_hash="+eval.RegistryHash.Hash)
	return strings.Join(parts, "; ")
}

// DiscoveryPolicyErrors applies Policy A to a discovery bead's changed
// files: every file must lie inside the allowlist and outside every
// production subsystem. Returns "" when the policy passes.
func DiscoveryPolicyErrors(eval *BoundaryEvaluation, changedFiles []string, cfg config.Settings) string {
	allowlist := cfg.DiscoveryAllowlist
	if allowlist == nil {
		allowlist = config.ParseAllowlist(config.DefaultDiscoveryAllowlist)
	}

	var outsideAllowlist, productionHits []string
	for _, file := range changedFiles {
		path := NormalizePrefix(file)
		if !hasAnyPrefix(path, allowlist) {
			outsideAllowlist = append(outsideAllowlist, path)
		}
		if hasAnyPrefix(path, eval.ProductionPrefixes) {
			productionHits = append(productionHits, path)
		}
	}
	if len(outsideAllowlist) == 0 && len(productionHits) == 0 {
		return ""
	}

	parts := []string{"Discovery policy violation (Policy A)"}
	if len(productionHits) > 0 {
		parts = append(parts, "production_paths_hit="+quoteList(dedupeSorted(productionHits)))
	}
	if len(outsideAllowlist) > 0 {
		parts = append(parts, "outside_allowlist="+quoteList(dedupeSorted(outsideAllowlist)))
	}
	parts = append(parts, "allowlist="+quoteList(allowlist))
	parts = append(parts, "boundary_registry_hash="+eval.RegistryHash.Hash)
	return strings.Join(parts, "; ")
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func dedupeSorted(items []string) []string {
	set := map[string]bool{}
	for _, item := range items {
		set[item] = true
	}
	out := make([]string, 0, len(set))
	for item := range set {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// quoteList renders paths as ['a', 'b'] so policy notes read the same
// across the tooling that consumes them.
func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "'" + item + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
