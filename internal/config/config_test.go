package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SDLC_REPO_ROOT", dir)

	settings, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if settings.RepoRoot != dir {
		t.Errorf("repo root = %q, want %q", settings.RepoRoot, dir)
	}
	if settings.MaxFilesTouched != DefaultMaxFilesTouched {
		t.Errorf("max files = %d, want %d", settings.MaxFilesTouched, DefaultMaxFilesTouched)
	}
	if settings.MaxSubsystemsTouched != DefaultMaxSubsystemsTouched {
		t.Errorf("max subsystems = %d, want %d", settings.MaxSubsystemsTouched, DefaultMaxSubsystemsTouched)
	}
	want := []string{"docs/", "notes/", "tools/", "experiments/", "runs/"}
	if !reflect.DeepEqual(settings.DiscoveryAllowlist, want) {
		t.Errorf("allowlist = %v, want %v", settings.DiscoveryAllowlist, want)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SDLC_REPO_ROOT", dir)
	t.Setenv("SDLC_MAX_FILES_TOUCHED", "20")
	t.Setenv("SDLC_MAX_SUBSYSTEMS_TOUCHED", "5")
	t.Setenv("SDLC_DISCOVERY_ALLOWLIST", "sandbox/, ./spikes/")

	settings, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if settings.MaxFilesTouched != 20 {
		t.Errorf("max files = %d, want 20", settings.MaxFilesTouched)
	}
	if settings.MaxSubsystemsTouched != 5 {
		t.Errorf("max subsystems = %d, want 5", settings.MaxSubsystemsTouched)
	}
	want := []string{"sandbox/", "spikes/"}
	if !reflect.DeepEqual(settings.DiscoveryAllowlist, want) {
		t.Errorf("allowlist = %v, want %v", settings.DiscoveryAllowlist, want)
	}
}

func TestParseAllowlist(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"docs/,notes/", []string{"docs/", "notes/"}},
		{" docs/ , ./notes/ ", []string{"docs/", "notes/"}},
		{",,docs/,", []string{"docs/"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseAllowlist(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAllowlist(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
