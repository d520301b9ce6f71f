package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/engine"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/timeparsing"
)

var (
	exceptionSummary string
	exceptionWaive   []string
	exceptionExpires string
)

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Append entries to the decision ledger",
}

var decisionExceptionCmd = &cobra.Command{
	Use:   "exception <bead_id>",
	Short: "Record an exception decision, optionally waiving acceptance checks",
	Long: `Exception entries authorize a bead with the exception execution
profile to start, and exempt the named acceptance checks from the
evidence coverage check until the entry expires. Every acceptance
check still needs an evidence item with its expected exit code.

--expires accepts RFC3339, +duration, or natural language:
  loom decision exception work-abc123 --summary "vendor outage" --waive run --expires "in 2 weeks"`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		beadID := args[0]
		if strings.TrimSpace(exceptionSummary) == "" {
			exitMalformed("summary must be non-empty")
		}
		var expiresAt *time.Time
		if exceptionExpires != "" {
			t, err := timeparsing.ParseRelativeTime(exceptionExpires, time.Now().UTC())
			if err != nil {
				exitMalformed("invalid --expires: %v", err)
			}
			expiresAt = &t
		}
		actor := model.Actor{Kind: model.ActorHuman, Name: actorNameOrUser("")}
		entry := engine.CreateExceptionEntry(beadID, exceptionSummary, exceptionWaive, expiresAt, actor)
		if err := engine.AppendDecisionEntry(paths, entry); err != nil {
			exitMalformed("%v", err)
		}
	},
}

func init() {
	decisionExceptionCmd.Flags().StringVar(&exceptionSummary, "summary", "", "exception summary (required)")
	decisionExceptionCmd.Flags().StringSliceVar(&exceptionWaive, "waive", nil, "acceptance check names to waive")
	decisionExceptionCmd.Flags().StringVar(&exceptionExpires, "expires", "", "expiry (RFC3339, +duration, or natural language)")
	_ = decisionExceptionCmd.MarkFlagRequired("summary")
	decisionCmd.AddCommand(decisionExceptionCmd)
	rootCmd.AddCommand(decisionCmd)
}
