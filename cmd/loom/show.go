package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/ui"
)

var showCmd = &cobra.Command{
	Use:   "show <bead_id>",
	Short: "Show a bead's state and requirements",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		bead, err := paths.LoadBead(args[0])
		if err != nil {
			exitMalformed("%v", err)
		}

		fmt.Printf("%s  %s\n", ui.TitleStyle.Render(bead.BeadID), bead.Title)
		fmt.Printf("type: %s  status: %s  priority: %d  profile: %s\n",
			bead.BeadType, ui.RenderStatus(bead.Status), bead.Priority, bead.ExecutionProfile)
		if bead.Owner != nil {
			fmt.Printf("owner: %s\n", *bead.Owner)
		}
		if len(bead.DependsOn) > 0 {
			fmt.Printf("depends on: %s\n", strings.Join(bead.DependsOn, ", "))
		}
		if len(bead.AcceptanceChecks) > 0 {
			fmt.Println("acceptance checks:")
			for _, check := range bead.AcceptanceChecks {
				fmt.Printf("  %s: %s (expect %d)\n", check.Name, check.Command, check.ExpectExitCode)
			}
		}

		var doc strings.Builder
		if bead.RequirementsMD != "" {
			doc.WriteString("## Requirements\n\n" + bead.RequirementsMD + "\n")
		}
		if bead.AcceptanceCriteriaMD != "" {
			doc.WriteString("\n## Acceptance criteria\n\n" + bead.AcceptanceCriteriaMD + "\n")
		}
		if bead.ContextMD != "" {
			doc.WriteString("\n## Context\n\n" + bead.ContextMD + "\n")
		}
		if doc.Len() > 0 {
			fmt.Print(ui.RenderMarkdown(doc.String()))
		}
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
