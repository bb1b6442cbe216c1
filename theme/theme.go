package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	VoiceIdle   rune // · free slot
	VoiceActive rune // ● sounding
	VoiceLast   rune // ◉ slot touched by the latest event
	Bar         rune // progress fill
	BarEmpty    rune
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			VoiceIdle:   '·',
			VoiceActive: '●',
			VoiceLast:   '◉',
			Bar:         '█',
			BarEmpty:    '░',
		},
	}
}

// Palette positions (0-1) of the colour roles
const (
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

// Color returns the palette colour at role as a lipgloss colour
func (t *Theme) Color(role float64) lipgloss.Color {
	c := t.Palette.Lookup(role)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}

func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Level maps a 0-1 loudness onto the upper half of the palette, where
// quiet voices sit at the accent colour
func (t *Theme) Level(norm float64) RGB {
	return t.Palette.Lookup(RoleAccent + norm*(RoleSuccess-RoleAccent))
}

// RGB returns the raw palette colour at norm
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}
