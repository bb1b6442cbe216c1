package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// VoiceCell is one slot of the voice grid
type VoiceCell struct {
	Active bool
	Note   uint8
	Level  float64 // 0-1 loudness
	Last   bool    // touched by the most recent event
}

// GridStyle tells RenderVoiceGrid how to draw cells
type GridStyle struct {
	Idle, Active, Last rune
	IdleColor          [3]uint8
	LevelColor         func(level float64) [3]uint8
}

// RenderPad renders a single colored symbol
func RenderPad(color [3]uint8, symbol rune) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(symbol))
}

// RenderVoiceGrid draws one line per channel, one symbol per voice
func RenderVoiceGrid(cells [][]VoiceCell, gs GridStyle) string {
	var lines []string
	for ch, row := range cells {
		var line strings.Builder
		fmt.Fprintf(&line, "ch%02d ", ch)
		for v, cell := range row {
			if v > 0 {
				line.WriteString(" ")
			}
			switch {
			case cell.Active && cell.Last:
				line.WriteString(RenderPad(gs.LevelColor(cell.Level), gs.Last))
			case cell.Active:
				line.WriteString(RenderPad(gs.LevelColor(cell.Level), gs.Active))
			default:
				line.WriteString(RenderPad(gs.IdleColor, gs.Idle))
			}
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// RenderProgress draws a fixed-width bar for done out of total
func RenderProgress(done, total, width int, fill, empty rune) string {
	if width <= 0 {
		return ""
	}
	n := 0
	if total > 0 {
		n = done * width / total
	}
	if n > width {
		n = width
	}
	return strings.Repeat(string(fill), n) + strings.Repeat(string(empty), width-n)
}

// RenderKeyHelp formats key bindings on one line
func RenderKeyHelp(keys []KeyBinding) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Key + ":" + k.Desc
	}
	return strings.Join(parts, "  ")
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
