// Package voice assigns notes to the per-channel voice slots of the chip
// and keeps track of how long each note is held.
package voice

import (
	"time"

	"github.com/pkg/errors"

	"soundchip/chip"
	"soundchip/debug"
	"soundchip/midi"
)

var (
	// ErrUnmatchedNoteOff is a note off with no open note for its key
	ErrUnmatchedNoteOff = errors.New("unmatched note off")
	// ErrChannelRange is an event on a channel the format does not have
	ErrChannelRange = errors.New("channel out of range")
)

// Pool answers whether a voice slot is currently sounding. The preview path
// asks the audio sink; without a Pool the allocator tracks slots itself.
type Pool interface {
	Busy(channel, voice int) bool
}

// Note is one allocated note. Duration grows while the note is held.
type Note struct {
	Index    int // onset order
	Channel  int
	Voice    int
	Pitch    uint8
	Velocity uint8
	Duration time.Duration
	Released bool
}

// Allocator owns the voice pools of one conversion or preview session
type Allocator struct {
	format chip.Format
	pool   Pool
	busy   [][]bool
	open   map[midi.Key][]*Note
	held   []*Note // open notes in onset order
	notes  []*Note
}

// NewAllocator creates empty pools for format. pool may be nil.
func NewAllocator(format chip.Format, pool Pool) *Allocator {
	busy := make([][]bool, format.Channels)
	for i := range busy {
		busy[i] = make([]bool, format.Voices)
	}
	return &Allocator{
		format: format,
		pool:   pool,
		busy:   busy,
		open:   make(map[midi.Key][]*Note),
	}
}

func (a *Allocator) isBusy(channel, v int) bool {
	if a.pool != nil {
		return a.pool.Busy(channel, v)
	}
	return a.busy[channel][v]
}

// free returns the first idle slot of channel, or 0 when all are busy
// (the oldest slot is retriggered)
func (a *Allocator) free(channel int) int {
	for v := 0; v < a.format.Voices; v++ {
		if !a.isBusy(channel, v) {
			return v
		}
	}
	debug.LogEvery(16, "voice", "channel %d saturated, stealing voice 0", channel)
	return 0
}

// extend adds d to every held note
func (a *Allocator) extend(d time.Duration) {
	if d == 0 {
		return
	}
	for _, n := range a.held {
		n.Duration += d
	}
}

// NoteOn allocates a voice for ev. Every note already held is extended by
// ev.Gap, and the new note starts with ev.Gap as its duration.
func (a *Allocator) NoteOn(ev midi.Event) (*Note, error) {
	channel := int(ev.Channel)
	if channel >= a.format.Channels {
		return nil, errors.Wrapf(ErrChannelRange, "channel %d, format has %d", channel, a.format.Channels)
	}

	a.extend(ev.Gap)

	n := &Note{
		Index:    len(a.notes),
		Channel:  channel,
		Voice:    a.free(channel),
		Pitch:    ev.Note,
		Velocity: ev.Velocity,
		Duration: ev.Gap,
	}
	a.busy[channel][n.Voice] = true

	key := ev.Key()
	a.open[key] = append(a.open[key], n)
	a.held = append(a.held, n)
	a.notes = append(a.notes, n)
	return n, nil
}

// NoteOff releases the most recent open note for ev's key, then extends the
// notes still held by ev.Gap.
func (a *Allocator) NoteOff(ev midi.Event) (*Note, error) {
	key := ev.Key()
	stack := a.open[key]
	if len(stack) == 0 {
		return nil, errors.Wrapf(ErrUnmatchedNoteOff, "note %d channel %d", ev.Note, ev.Channel)
	}

	n := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(a.open, key)
	} else {
		a.open[key] = stack[:len(stack)-1]
	}
	n.Released = true
	a.busy[n.Channel][n.Voice] = false

	for i, h := range a.held {
		if h == n {
			a.held = append(a.held[:i], a.held[i+1:]...)
			break
		}
	}

	a.extend(ev.Gap)
	return n, nil
}

// Apply dispatches ev to NoteOn or NoteOff. End events only extend.
func (a *Allocator) Apply(ev midi.Event) (*Note, error) {
	switch ev.Kind {
	case midi.NoteOn:
		return a.NoteOn(ev)
	case midi.NoteOff:
		return a.NoteOff(ev)
	}
	a.extend(ev.Gap)
	return nil, nil
}

// Notes returns every allocated note in onset order
func (a *Allocator) Notes() []*Note {
	return a.notes
}

// Held returns the notes not yet released, oldest first
func (a *Allocator) Held() []*Note {
	return a.held
}

// Clamp raises every duration below min to min
func (a *Allocator) Clamp(min time.Duration) {
	for _, n := range a.notes {
		if n.Duration < min {
			n.Duration = min
		}
	}
}
