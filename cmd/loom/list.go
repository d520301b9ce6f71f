package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robchristie/loom/internal/model"
	"github.com/robchristie/loom/internal/ui"
)

var (
	listStatus string
	listQuery  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List beads across the run directory and the upstream issue store",
	Run: func(_ *cobra.Command, _ []string) {
		byID := map[string]*model.Bead{}
		ids, err := paths.ListRunBeadIDs()
		if err != nil {
			exitMalformed("%v", err)
		}
		for _, id := range ids {
			if bead, err := paths.LoadBead(id); err == nil {
				byID[id] = bead
			}
		}
		for _, bead := range paths.ListIssueStoreBeads() {
			if _, exists := byID[bead.BeadID]; !exists {
				byID[bead.BeadID] = bead
			}
		}

		needle := strings.ToLower(listQuery)
		var beads []*model.Bead
		for _, bead := range byID {
			if listStatus != "" && string(bead.Status) != listStatus {
				continue
			}
			if needle != "" &&
				!strings.Contains(strings.ToLower(bead.BeadID), needle) &&
				!strings.Contains(strings.ToLower(bead.Title), needle) {
				continue
			}
			beads = append(beads, bead)
		}
		sort.Slice(beads, func(i, j int) bool {
			a, b := beads[i], beads[j]
			if a.Status != b.Status {
				return a.Status < b.Status
			}
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			return a.BeadID < b.BeadID
		})
		fmt.Print(ui.RenderBeadTable(beads))
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by exact status")
	listCmd.Flags().StringVar(&listQuery, "q", "", "substring match against id/title")
	rootCmd.AddCommand(listCmd)
}
