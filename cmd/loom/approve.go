package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/engine"
	"github.com/robchristie/loom/internal/model"
)

var approveSummary string

var approveCmd = &cobra.Command{
	Use:   "approve <bead_id>",
	Short: "Append a human approval to the decision ledger",
	Long: `Approve records the human judgment that gates approval_pending -> done.
The summary should start with "APPROVAL:" by convention.`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		beadID := args[0]
		if strings.TrimSpace(approveSummary) == "" {
			exitMalformed("summary must be non-empty")
		}
		if !strings.HasPrefix(approveSummary, "APPROVAL:") {
			fmt.Fprintln(os.Stderr, `Warning: summary should start with "APPROVAL:"`)
		}
		actor := model.Actor{Kind: model.ActorHuman, Name: actorNameOrUser("")}
		entry := engine.CreateApprovalEntry(beadID, approveSummary, actor)
		if err := engine.AppendDecisionEntry(paths, entry); err != nil {
			exitMalformed("%v", err)
		}
	},
}

func actorNameOrUser(name string) string {
	if name != "" {
		return name
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

func init() {
	approveCmd.Flags().StringVar(&approveSummary, "summary", "", "approval summary (required)")
	_ = approveCmd.MarkFlagRequired("summary")
	rootCmd.AddCommand(approveCmd)
}
