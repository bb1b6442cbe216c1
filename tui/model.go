package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"soundchip/chip"
	"soundchip/midi"
	"soundchip/theme"
	"soundchip/widgets"
)

const progressWidth = 40

var keys = []widgets.KeyBinding{
	{Key: "q", Desc: "stop and quit"},
}

type Model struct {
	Monitor  *Monitor
	Theme    *theme.Theme
	title    string
	format   chip.Format
	cancel   context.CancelFunc
	state    State
	quitting bool
}

type UpdateMsg struct{}

// NewModel creates the voice monitor for one preview run. cancel stops
// the run when the user quits.
func NewModel(title string, format chip.Format, mon *Monitor, th *theme.Theme, cancel context.CancelFunc) Model {
	return Model{
		Monitor: mon,
		Theme:   th,
		title:   title,
		format:  format,
		cancel:  cancel,
		state:   mon.Snapshot(),
	}
}

func ListenForUpdates(mon *Monitor) tea.Cmd {
	return func() tea.Msg {
		<-mon.UpdateChan
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForUpdates(m.Monitor)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case UpdateMsg:
		m.state = m.Monitor.Snapshot()
		if m.state.Done {
			return m, tea.Quit
		}
		return m, ListenForUpdates(m.Monitor)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.state
	th := m.Theme

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	errStyle := lipgloss.NewStyle().Foreground(th.Warning())
	textStyle := lipgloss.NewStyle().Foreground(th.FG())

	header := headerStyle.Render(fmt.Sprintf("soundchip  %s  %s", m.title, m.format))

	progress := textStyle.Render(fmt.Sprintf("%s %d/%d  %s",
		widgets.RenderProgress(s.Index, s.Total, progressWidth, th.Symbols.Bar, th.Symbols.BarEmpty),
		s.Index, s.Total, s.Elapsed.Truncate(10*time.Millisecond)))

	last := ""
	if s.Total > 0 && s.Last != (midi.Event{}) {
		last = dimStyle.Render(s.Last.String())
	}

	grid := widgets.RenderVoiceGrid(s.Cells, widgets.GridStyle{
		Idle:      th.Symbols.VoiceIdle,
		Active:    th.Symbols.VoiceActive,
		Last:      th.Symbols.VoiceLast,
		IdleColor: th.RGB(theme.RoleMuted),
		LevelColor: func(level float64) [3]uint8 {
			return th.Level(level)
		},
	})

	help := dimStyle.Render(widgets.RenderKeyHelp(keys))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(progress)
	out.WriteString("\n")
	out.WriteString(last)
	out.WriteString("\n\n")
	out.WriteString(grid)
	out.WriteString("\n\n")
	switch {
	case s.Err != nil:
		out.WriteString(errStyle.Render("error: " + s.Err.Error()))
		out.WriteString("\n")
	case s.Done:
		out.WriteString(lipgloss.NewStyle().Foreground(th.Success()).Render("done"))
		out.WriteString("\n")
	}
	out.WriteString(help)

	return out.String()
}
