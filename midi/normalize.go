package midi

import (
	"io"

	"github.com/pkg/errors"

	"soundchip/chip"
	"soundchip/debug"
)

// Normalize reads src to the end of track and returns the note events with
// their gaps filled in. A nil filter means Identity.
//
// Each event's gap is the time until the next note event: deltas of
// ignored messages in between are added to it, and the end-of-track delta
// extends the last gap. Messages before the first note are dropped.
func Normalize(src Source, filter ChannelFilter) ([]Event, error) {
	if filter == nil {
		filter = Identity
	}

	var events []Event
	for {
		msg, err := src.Next()
		if err == io.EOF {
			msg = Message{Kind: MessageEndOfTrack}
		} else if err != nil {
			return nil, errors.Wrapf(err, "read message %d", len(events))
		}

		if n := len(events); n > 0 {
			events[n-1].Gap += msg.Delta
		}

		switch msg.Kind {
		case MessageNoteOn, MessageNoteOff:
			kind := NoteOn
			if msg.Kind == MessageNoteOff {
				kind = NoteOff
			}
			events = append(events, Event{
				Kind:     kind,
				Note:     msg.Note & (1<<chip.NoteBits - 1),
				Channel:  filter.Filter(msg.Channel),
				Velocity: chip.VelocityToAmp(msg.Velocity),
			})
		case MessageEndOfTrack:
			debug.Log("midi", "normalized %d events", len(events))
			return events, nil
		}
	}
}
