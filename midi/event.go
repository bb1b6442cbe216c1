package midi

import (
	"fmt"
	"time"
)

// EventKind is what an Event does to a voice
type EventKind int

const (
	NoteOn EventKind = iota
	NoteOff
	End
)

func (k EventKind) String() string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case End:
		return "end"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one normalized timeline step. Gap is how long to wait after
// handling it before the next event.
type Event struct {
	Kind     EventKind
	Note     uint8
	Channel  uint8 // after the channel filter
	Velocity uint8 // chip amplitude domain, 0..chip.MaxAmp
	Gap      time.Duration
}

// Key identifies the voice stack a note on/off pair shares
type Key struct {
	Note    uint8
	Channel uint8
}

func (e Event) Key() Key {
	return Key{Note: e.Note, Channel: e.Channel}
}

func (e Event) String() string {
	if e.Kind == End {
		return fmt.Sprintf("end sleep: %v", e.Gap)
	}
	return fmt.Sprintf("[%d] %s %d vel: %d sleep: %v", e.Channel, e.Kind, e.Note, e.Velocity, e.Gap)
}
