// Package render formats predictions and glyphs for a terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Brownie44l1/handwriting-api/internal/glyph"
	"github.com/Brownie44l1/handwriting-api/internal/model"
)

var (
	topStyle   = lipgloss.NewStyle().Bold(true)
	restStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	labelStyle = lipgloss.NewStyle().Width(6).Align(lipgloss.Right).PaddingRight(2)
	probStyle  = lipgloss.NewStyle().Width(8).Align(lipgloss.Right)
)

// Percent formats a probability the way rankings show it, e.g. "12.34%".
func Percent(p float32) string {
	return fmt.Sprintf("%.2f%%", 100*p)
}

// Ranking renders the first limit entries of r, one per line, the best one highlighted.
// limit <= 0 renders them all.
func Ranking(r model.Ranking, limit int) string {
	if limit <= 0 || limit > len(r) {
		limit = len(r)
	}
	lines := make([]string, 0, limit)
	for _, s := range r[:limit] {
		style := restStyle
		if s.Rank == 0 {
			style = topStyle
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(s.Label), probStyle.Render(Percent(s.Probability)))
		lines = append(lines, style.Render(row))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// shades maps intensity, darkest first, to a character.
var shades = []rune(" .:-=+*#%@")

// Glyph renders g with one character per pixel, doubled horizontally to keep the aspect ratio.
func Glyph(g glyph.Glyph) string {
	var sb strings.Builder
	for y := range glyph.Size {
		for x := range glyph.Size {
			v := g[y*glyph.Size+x]
			c := shades[int(v)*(len(shades)-1)/255]
			sb.WriteRune(c)
			sb.WriteRune(c)
		}
		if y < glyph.Size-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Side puts the glyph preview and the ranking next to each other.
func Side(g glyph.Glyph, r model.Ranking, limit int) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Render(Glyph(g)),
		lipgloss.NewStyle().PaddingLeft(2).Render(Ranking(r, limit)))
}
