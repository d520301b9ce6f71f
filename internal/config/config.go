// Package config loads engine settings from the environment and an
// optional .sdlc/config.yaml, producing an immutable Settings value
// that is passed through explicitly. There is no module-level mutable
// state: every consumer receives Settings from its caller.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Defaults mirrored by the SDLC_* environment variables.
const (
	DefaultMaxFilesTouched      = 8
	DefaultMaxSubsystemsTouched = 2
	DefaultDiscoveryAllowlist   = "docs/,notes/,tools/,experiments/,runs/"
	DefaultServeAddr            = ":8700"
)

// Settings is the resolved engine configuration.
type Settings struct {
	RepoRoot             string
	MaxFilesTouched      int
	MaxSubsystemsTouched int
	DiscoveryAllowlist   []string
	ServeAddr            string
	ServerLogFile        string
}

// Load resolves settings once at process start. Precedence: SDLC_*
// environment variables, then the nearest .sdlc/config.yaml walking up
// from the working directory, then defaults.
func Load() (Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Walk up from CWD to find a project .sdlc/config.yaml so commands
	// work from subdirectories.
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".sdlc", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				if err := v.ReadInConfig(); err != nil {
					return Settings{}, err
				}
				break
			}
		}
	}

	// SDLC_REPO_ROOT, SDLC_MAX_FILES_TOUCHED, SDLC_MAX_SUBSYSTEMS_TOUCHED,
	// SDLC_DISCOVERY_ALLOWLIST, SDLC_SERVE_ADDR, SDLC_SERVER_LOG_FILE.
	v.SetEnvPrefix("SDLC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("repo-root", "")
	v.SetDefault("max-files-touched", DefaultMaxFilesTouched)
	v.SetDefault("max-subsystems-touched", DefaultMaxSubsystemsTouched)
	v.SetDefault("discovery-allowlist", DefaultDiscoveryAllowlist)
	v.SetDefault("serve-addr", DefaultServeAddr)
	v.SetDefault("server-log-file", "")

	root := v.GetString("repo-root")
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Settings{}, err
		}
		root = cwd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		RepoRoot:             absRoot,
		MaxFilesTouched:      v.GetInt("max-files-touched"),
		MaxSubsystemsTouched: v.GetInt("max-subsystems-touched"),
		DiscoveryAllowlist:   ParseAllowlist(v.GetString("discovery-allowlist")),
		ServeAddr:            v.GetString("serve-addr"),
		ServerLogFile:        v.GetString("server-log-file"),
	}
	if settings.ServerLogFile == "" {
		settings.ServerLogFile = filepath.Join(absRoot, ".sdlc", "server.log")
	}
	return settings, nil
}

// ParseAllowlist splits a comma-separated prefix list, trimming
// whitespace and leading "./" the way boundary matching does.
func ParseAllowlist(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		cleaned := strings.TrimLeft(strings.TrimSpace(item), "./")
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
