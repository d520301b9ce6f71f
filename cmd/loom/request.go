package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/engine"
)

var (
	requestActorKind string
	requestActorName string
)

var requestCmd = &cobra.Command{
	Use:   `request <bead_id> <"from -> to">`,
	Short: "Request a lifecycle transition; the attempt is journaled",
	Long: `Request moves a bead along one edge of the lifecycle state machine.
The engine checks legality, authority, and the edge's gates; every
attempt is appended to runs/journal.jsonl whether it succeeds or not.

Examples:
  loom request work-abc123 "draft -> sized"
  loom request work-abc123 "verification_pending -> verified" --actor-kind system`,
	Args: cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		beadID, transition := args[0], args[1]
		actor := cliActor(requestActorKind, requestActorName)

		result := engine.RequestTransition(paths, cfg, beadID, transition, actor)
		phase := engine.PhaseForTransitionString(transition)
		if _, err := engine.RecordTransitionAttempt(paths, beadID, phase, actor, transition, result, nil); err != nil {
			// Journaling failure must not mask the transition outcome.
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		if !result.OK {
			exitRejected("%s", result.Notes)
		}
		if result.Notes != "" {
			fmt.Println(result.Notes)
		}
	},
}

func init() {
	requestCmd.Flags().StringVar(&requestActorKind, "actor-kind", "human", "actor kind (human, agent, system)")
	requestCmd.Flags().StringVar(&requestActorName, "actor-name", "", "actor name (defaults to $USER)")
	rootCmd.AddCommand(requestCmd)
}
