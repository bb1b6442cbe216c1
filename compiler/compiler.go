// Package compiler turns a normalized event timeline into the program text
// run by the sound chip's driver VM: a fixed player loop followed by one
// Sound record per note.
package compiler

import (
	"time"

	"github.com/pkg/errors"

	"soundchip/chip"
	"soundchip/debug"
	"soundchip/midi"
	"soundchip/voice"
)

// DefaultMinNoteTime is the shortest duration a compiled note may have
const DefaultMinNoteTime = 75 * time.Millisecond

// Sound is one compiled note
type Sound struct {
	FreqAmp    uint32 // velocity above the frequency field
	Mix        uint32 // encoded instrument of the note's channel
	DurationMs uint32
	SleepMs    uint32 // wait after starting this note
}

// Options tunes compilation
type Options struct {
	MinNoteTime time.Duration
}

// DefaultOptions returns the reference settings
func DefaultOptions() Options {
	return Options{MinNoteTime: DefaultMinNoteTime}
}

// FreqAmp packs a velocity and a MIDI note into the chip's frequency word
func FreqAmp(velocity, note uint8) uint32 {
	freq := uint32(chip.PitchToFrequency(int(note)))
	if freq > chip.Mask(freq, chip.FreqBits) {
		debug.Warn("compile", "note %d (%dHz) does not fit %d frequency bits, masking", note, freq, chip.FreqBits)
	}
	amp := chip.Mask(uint32(velocity), chip.AmpBits)
	return amp<<chip.FreqBits | chip.Mask(freq, chip.FreqBits)
}

// Compile replays events through a voice allocator and returns one Sound
// per note on, in onset order. A note off with no open note aborts.
func Compile(events []midi.Event, table chip.Table, format chip.Format, opts Options) (*Program, error) {
	alloc := voice.NewAllocator(format, nil)
	var sounds []Sound
	var sleeps []time.Duration

	for i, ev := range events {
		switch ev.Kind {
		case midi.NoteOn:
			if _, err := alloc.NoteOn(ev); err != nil {
				return nil, errors.Wrapf(err, "event %d", i)
			}
			sounds = append(sounds, Sound{
				FreqAmp: FreqAmp(ev.Velocity, ev.Note),
				Mix:     table.For(int(ev.Channel)).Encode(format.MixerWords),
			})
			sleeps = append(sleeps, ev.Gap)

		case midi.NoteOff:
			if _, err := alloc.NoteOff(ev); err != nil {
				return nil, errors.Wrapf(err, "event %d", i)
			}
			if ev.Gap != 0 && len(sleeps) > 0 {
				sleeps[len(sleeps)-1] += ev.Gap
			}

		default:
			alloc.Apply(ev)
			if len(sleeps) > 0 {
				sleeps[len(sleeps)-1] += ev.Gap
			}
		}
	}

	alloc.Clamp(opts.MinNoteTime)
	for i, n := range alloc.Notes() {
		sounds[i].DurationMs = milliseconds(n.Duration)
		sounds[i].SleepMs = milliseconds(sleeps[i])
	}

	debug.Log("compile", "%d events -> %d sounds", len(events), len(sounds))
	return &Program{Sounds: sounds, MixerWords: format.MixerWords}, nil
}

func milliseconds(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}
	return uint32(d.Milliseconds())
}
