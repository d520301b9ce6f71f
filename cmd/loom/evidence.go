package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/engine"
	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/runner"
	"github.com/robchristie/loom/internal/store"
)

var evidenceRun bool

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Collect, validate, or invalidate a bead's evidence bundle",
}

var evidenceCollectCmd = &cobra.Command{
	Use:   "collect <bead_id>",
	Short: "Write an evidence bundle for a bead's acceptance checks",
	Long: `Collect writes runs/<bead_id>/evidence.json. By default a skeleton
bundle is produced with one pending item per acceptance check; with
--run each check is executed and its output captured under
runs/<bead_id>/evidence/.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		beadID := args[0]
		actor := model.Actor{Kind: model.ActorSystem, Name: "loom"}
		bead, err := paths.LoadBead(beadID)
		if err != nil {
			exitMalformed("%v", err)
		}

		if evidenceRun {
			result, err := runner.RunAcceptanceChecks(cmd.Context(), paths, bead, actor, nil)
			if err != nil {
				exitMalformed("%v", err)
			}
			if err := engine.JournalSimpleAction(paths, beadID, model.PhaseVerify, actor,
				"Evidence collected from acceptance checks", result.ProducedPaths, result.ExitCode); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
			if result.ExitCode != 0 {
				exitRejected("one or more acceptance checks failed")
			}
			return
		}

		bundle, err := engine.CollectEvidenceSkeleton(bead, actor)
		if err != nil {
			exitMalformed("%v", err)
		}
		if err := store.WriteModel(paths.EvidencePath(beadID), bundle); err != nil {
			exitMalformed("%v", err)
		}
	},
}

var evidenceValidateCmd = &cobra.Command{
	Use:   "validate <bead_id>",
	Short: "Validate the evidence bundle against its bead",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		beadID := args[0]
		actor := model.Actor{Kind: model.ActorSystem, Name: "loom"}
		// A human-authored bundle journals under its human author.
		if evidence, err := paths.LoadEvidence(beadID); err == nil && evidence != nil &&
			evidence.CreatedBy.Kind == model.ActorHuman {
			actor = evidence.CreatedBy
		}

		evidenceAfter, errs, err := engine.ValidateEvidenceBundle(paths, beadID, true)
		if err != nil {
			exitMalformed("%v", err)
		}

		exitCode := 0
		var notes string
		if len(errs) > 0 {
			exitCode = 1
			notes = strings.Join(errs, "; ")
		}
		var produced []string
		if evidenceAfter != nil {
			produced = []string{fmt.Sprintf("runs/%s/evidence.json", beadID)}
		}
		if err := engine.JournalSimpleAction(paths, beadID, model.PhaseVerify, actor, notes, produced, exitCode); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		if len(errs) > 0 {
			exitRejected("%s", strings.Join(errs, "; "))
		}
	},
}

var evidenceInvalidateCmd = &cobra.Command{
	Use:   "invalidate-if-stale <bead_id>",
	Short: "Invalidate a validated bundle whose bead or environment drifted",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		actor := model.Actor{Kind: model.ActorSystem, Name: "loom"}
		reason, err := engine.InvalidateEvidenceIfStale(paths, args[0], actor)
		if err != nil {
			exitMalformed("%v", err)
		}
		if reason != "" {
			fmt.Println(reason)
		}
	},
}

func init() {
	evidenceCollectCmd.Flags().BoolVar(&evidenceRun, "run", false, "execute acceptance checks instead of writing a skeleton")
	evidenceCmd.AddCommand(evidenceCollectCmd)
	evidenceCmd.AddCommand(evidenceValidateCmd)
	evidenceCmd.AddCommand(evidenceInvalidateCmd)
	rootCmd.AddCommand(evidenceCmd)
}
