package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/store"
)

var openspecCmd = &cobra.Command{
	Use:   "openspec",
	Short: "Work with external specification references",
}

var openspecSyncCmd = &cobra.Command{
	Use:   "sync <bead_id>",
	Short: "Copy an approved spec ref into the bead's run directory",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		beadID := args[0]
		bead, err := paths.LoadBead(beadID)
		if err != nil {
			exitMalformed("%v", err)
		}
		if bead.OpenSpecRef == nil {
			exitMalformed("Bead.openspec_ref missing")
		}
		source := paths.OpenSpecRefSource(bead.OpenSpecRef.ArtifactID)
		ref, err := store.LoadOpenSpecRef(source)
		if err != nil {
			exitMalformed("OpenSpecRef invalid: %v", err)
		}
		if ref == nil {
			exitMalformed("OpenSpecRef artifact not found: %s", source)
		}
		out := paths.OpenSpecRefPath(beadID)
		if err := store.WriteModel(out, ref); err != nil {
			exitMalformed("%v", err)
		}
		fmt.Println(out)
	},
}

func init() {
	openspecCmd.AddCommand(openspecSyncCmd)
	rootCmd.AddCommand(openspecCmd)
}
