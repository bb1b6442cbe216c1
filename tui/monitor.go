package tui

import (
	"sync"
	"time"

	"soundchip/chip"
	"soundchip/midi"
	"soundchip/preview"
	"soundchip/widgets"
)

// State is a copy of what the monitor knows about a preview run
type State struct {
	Cells   [][]widgets.VoiceCell
	Index   int
	Total   int
	Elapsed time.Duration
	Last    midi.Event
	Done    bool
	Err     error
}

// Monitor is a preview observer that keeps the voice grid. The player
// writes it, the TUI reads snapshots when UpdateChan fires.
type Monitor struct {
	mu    sync.Mutex
	state State
	lastV [2]int

	UpdateChan chan struct{}
}

// NewMonitor creates an idle grid for format
func NewMonitor(format chip.Format) *Monitor {
	cells := make([][]widgets.VoiceCell, format.Channels)
	for i := range cells {
		cells[i] = make([]widgets.VoiceCell, format.Voices)
	}
	return &Monitor{
		state:      State{Cells: cells},
		lastV:      [2]int{-1, -1},
		UpdateChan: make(chan struct{}, 1),
	}
}

// Observe implements preview.Observer
func (m *Monitor) Observe(u preview.Update) {
	m.mu.Lock()
	s := &m.state
	s.Index, s.Total, s.Elapsed = u.Index, u.Total, u.Elapsed

	if u.Done {
		s.Done, s.Err = true, u.Err
		for _, row := range s.Cells {
			for v := range row {
				row[v] = widgets.VoiceCell{}
			}
		}
	} else {
		s.Last = u.Event
		ch := int(u.Event.Channel)
		if m.lastV[0] >= 0 {
			s.Cells[m.lastV[0]][m.lastV[1]].Last = false
		}
		if u.Voice >= 0 && ch < len(s.Cells) && u.Voice < len(s.Cells[ch]) {
			cell := &s.Cells[ch][u.Voice]
			switch u.Event.Kind {
			case midi.NoteOn:
				*cell = widgets.VoiceCell{
					Active: true,
					Note:   u.Event.Note,
					Level:  float64(u.Event.Velocity) / chip.MaxAmp,
				}
			case midi.NoteOff:
				*cell = widgets.VoiceCell{}
			}
			cell.Last = true
			m.lastV = [2]int{ch, u.Voice}
		}
	}
	m.mu.Unlock()

	// Notify TUI
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}

// Snapshot returns a deep copy of the current state
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	s.Cells = make([][]widgets.VoiceCell, len(m.state.Cells))
	for i, row := range m.state.Cells {
		s.Cells[i] = append([]widgets.VoiceCell(nil), row...)
	}
	return s
}
