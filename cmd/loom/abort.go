package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/engine"
	"github.com/robchristie/loom/internal/model"
)

var (
	abortReason    string
	abortActorKind string
	abortActorName string
)

var abortCmd = &cobra.Command{
	Use:   "abort <bead_id>",
	Short: "Record an abort decision and move the bead to aborted:needs-discovery",
	Long: `Abort appends a scope_change decision (summary prefixed "ABORT: "),
then requests the transition to aborted:needs-discovery and journals
the attempt with a link to the decision entry. The decision is
recorded even when the transition itself is rejected.`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		beadID := args[0]
		if strings.TrimSpace(abortReason) == "" {
			exitMalformed("reason must be non-empty")
		}
		actor := cliActor(abortActorKind, abortActorName)

		entry := engine.CreateAbortEntry(beadID, abortReason, actor)
		if err := engine.AppendDecisionEntry(paths, entry); err != nil {
			exitMalformed("%v", err)
		}
		if err := engine.RecordDecisionAction(paths, entry, engine.DecisionActionPhase(paths, beadID), actor, "Abort requested"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}

		bead, err := paths.LoadBead(beadID)
		if err != nil {
			exitMalformed("%v", err)
		}
		requested := engine.FormatTransition(bead.Status, model.StatusAbortedNeedsDiscovery)
		result := engine.RequestTransition(paths, cfg, beadID, requested, actor)
		if _, err := engine.RecordTransitionAttempt(paths, beadID,
			engine.PhaseForTransitionString(requested), actor, requested, result,
			[]model.ArtifactLink{engine.DecisionLink(entry)}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		if !result.OK {
			exitRejected("%s", result.Notes)
		}
	},
}

func init() {
	abortCmd.Flags().StringVar(&abortReason, "reason", "", "abort reason (required)")
	abortCmd.Flags().StringVar(&abortActorKind, "actor-kind", "human", "actor kind (human, agent, system)")
	abortCmd.Flags().StringVar(&abortActorName, "actor-name", "", "actor name (defaults to $USER)")
	_ = abortCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(abortCmd)
}
