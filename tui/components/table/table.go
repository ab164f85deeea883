// Package table renders themed lipgloss tables for CLI output.
package table

import (
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"github.com/grovetools/mwstate/tui/theme"
)

// Options controls how a table is styled.
type Options struct {
	Theme         *theme.Theme
	Bordered      bool
	AlternateRows bool
	Width         int
}

// DefaultOptions returns bordered, themed options.
func DefaultOptions() Options {
	return Options{
		Theme:         theme.DefaultTheme,
		Bordered:      true,
		AlternateRows: theme.DefaultTheme.UseAlternatingRows,
	}
}

// New builds a styled table from headers and rows.
func New(opts Options, headers []string, rows [][]string) *ltable.Table {
	if opts.Theme == nil {
		opts.Theme = theme.DefaultTheme
	}
	t := opts.Theme

	tbl := ltable.New().Headers(headers...).Rows(rows...)
	if opts.Width > 0 {
		tbl = tbl.Width(opts.Width)
	}
	if opts.Bordered {
		tbl = tbl.
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border))
	} else {
		tbl = tbl.Border(lipgloss.HiddenBorder())
	}

	return tbl.StyleFunc(func(row, col int) lipgloss.Style {
		if row == ltable.HeaderRow {
			return t.TableHeader.Padding(0, 1)
		}
		style := t.TableRow.Padding(0, 1)
		if opts.AlternateRows && row%2 == 1 {
			style = style.Background(t.Colors.SubtleBg)
		}
		return style
	})
}

// Render renders headers and rows with the default options.
func Render(headers []string, rows [][]string) string {
	return New(DefaultOptions(), headers, rows).Render()
}
