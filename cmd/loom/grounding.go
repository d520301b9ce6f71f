package main

import (
	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/engine"
	"github.com/robchristie/loom/internal/model"
)

var groundingCmd = &cobra.Command{
	Use:   "grounding",
	Short: "Manage grounding bundles",
}

var groundingGenerateCmd = &cobra.Command{
	Use:   "generate <bead_id>",
	Short: "Generate the grounding bundle for a bead",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		actor := model.Actor{Kind: model.ActorSystem, Name: "loom"}
		if err := engine.GenerateGroundingBundle(paths, args[0], actor); err != nil {
			exitMalformed("%v", err)
		}
	},
}

func init() {
	groundingCmd.AddCommand(groundingGenerateCmd)
	rootCmd.AddCommand(groundingCmd)
}
