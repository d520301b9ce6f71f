package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/robchristie/loom/internal/model"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	tableBorderStyle = lipgloss.NewStyle().Foreground(ColorMuted)
)

// RenderBeadTable renders a bead listing. In non-TTY mode it degrades
// to tab-separated plain text.
func RenderBeadTable(beads []*model.Bead) string {
	if !ShouldUseColor() {
		var b strings.Builder
		b.WriteString("ID\tTYPE\tSTATUS\tPRI\tTITLE\n")
		for _, bead := range beads {
			fmt.Fprintf(&b, "%s\t%s\t%s\t%d\t%s\n",
				bead.BeadID, bead.BeadType, bead.Status, bead.Priority, bead.Title)
		}
		return b.String()
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("ID", "TYPE", "STATUS", "PRI", "TITLE")
	for _, bead := range beads {
		t.Row(bead.BeadID, string(bead.BeadType), RenderStatus(bead.Status),
			fmt.Sprintf("%d", bead.Priority), bead.Title)
	}
	return t.Render()
}
