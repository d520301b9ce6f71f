// Command loom drives the auditable SDLC engine: artifact validation,
// lifecycle transitions, evidence collection/validation, decisions,
// and the observability server.
//
// Exit codes: 0 on success, 1 on engine rejection, 2 on malformed
// input.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/config"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/store"
)

var (
	cfg   config.Settings
	paths store.Paths
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Auditable SDLC engine for AI-assisted coding work",
	Long: `loom gates every lifecycle transition of a work bead on verifiable,
content-addressed artifacts and journals every attempt.

The repository root is the current directory unless SDLC_REPO_ROOT (or
repo-root in .sdlc/config.yaml) is set.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		cfg = loaded
		paths = store.NewPaths(cfg.RepoRoot)
		return nil
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

// exitMalformed reports unusable input and exits 2.
func exitMalformed(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(2)
}

// exitRejected reports an engine rejection and exits 1.
func exitRejected(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// cliActor builds an actor from the shared --actor-kind/--actor-name
// flag values.
func cliActor(kind, name string) model.Actor {
	actorKind := model.ActorKind(kind)
	if !actorKind.IsValid() {
		exitMalformed("invalid actor kind %q (expected human, agent, or system)", kind)
	}
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = "unknown"
	}
	return model.Actor{Kind: actorKind, Name: name}
}
