package midi

import (
	"io"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"soundchip/debug"
)

// midi standard initializes file with this value
const microsecondsPerBeatDefault = 500000

// timedEvent is an SMF event placed on the merged timeline
type timedEvent struct {
	track int
	tick  int64
	msg   smf.Message
}

// OpenSMF reads a Standard MIDI File from disk
func OpenSMF(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadSMF(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return s, nil
}

// ReadSMF parses a Standard MIDI File and flattens all tracks into one
// ordered message stream with wall-clock deltas. Per-track end-of-track
// markers are replaced by a single one at the latest track end.
func ReadSMF(r io.Reader) (*Stream, error) {
	file, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse smf")
	}

	ticks, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok || uint16(ticks) == 0 {
		// SMPTE time codes are not used by any tool we target
		return nil, errors.Errorf("unsupported time format %v", file.TimeFormat)
	}
	ticksPerBeat := int64(uint16(ticks))

	var (
		merged []timedEvent
		endTick int64
	)
	for i, track := range file.Tracks {
		var abs int64
		for _, ev := range track {
			abs += int64(ev.Delta)
			if isEndOfTrack(ev.Message) {
				if abs > endTick {
					endTick = abs
				}
				continue
			}
			merged = append(merged, timedEvent{track: i, tick: abs, msg: ev.Message})
		}
		if abs > endTick {
			endTick = abs
		}
	}

	// stable keeps track order, then file order, for simultaneous events
	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].tick < merged[b].tick
	})

	clock := newTempoClock(ticksPerBeat)
	msgs := make([]Message, 0, len(merged)+1)
	for _, ev := range merged {
		delta := clock.advance(ev.tick)
		msgs = append(msgs, toMessage(ev.msg, delta))

		var bpm float64
		if ev.msg.GetMetaTempo(&bpm) && bpm > 0 {
			clock.setTempo(bpm)
		}
	}
	msgs = append(msgs, Message{Kind: MessageEndOfTrack, Delta: clock.advance(endTick)})

	debug.Log("midi", "read smf: %d tracks, %d ticks/beat, %d messages", len(file.Tracks), ticksPerBeat, len(msgs))
	return NewStream(msgs...), nil
}

func isEndOfTrack(m smf.Message) bool {
	return len(m) >= 2 && m[0] == 0xFF && m[1] == 0x2F
}

func toMessage(m smf.Message, delta time.Duration) Message {
	var channel, key, velocity uint8
	msg := gomidi.Message(m)

	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		// running-status files turn notes off with velocity 0
		if velocity == 0 {
			return Message{Kind: MessageNoteOff, Note: key, Channel: channel, Delta: delta}
		}
		return Message{Kind: MessageNoteOn, Note: key, Channel: channel, Velocity: velocity, Delta: delta}
	case msg.GetNoteOff(&channel, &key, &velocity):
		return Message{Kind: MessageNoteOff, Note: key, Channel: channel, Velocity: velocity, Delta: delta}
	}
	return Message{Kind: MessageOther, Delta: delta}
}

// tempoClock converts absolute ticks into deltas while following tempo
// changes on the merged timeline.
type tempoClock struct {
	ticksPerBeat        int64
	microsecondsPerBeat int64
	lastTick            int64
}

func newTempoClock(ticksPerBeat int64) *tempoClock {
	return &tempoClock{
		ticksPerBeat:        ticksPerBeat,
		microsecondsPerBeat: microsecondsPerBeatDefault,
	}
}

func (c *tempoClock) advance(tick int64) time.Duration {
	if tick <= c.lastTick {
		return 0
	}
	dt := tick - c.lastTick
	c.lastTick = tick
	return time.Duration(dt*c.microsecondsPerBeat*1000/c.ticksPerBeat) * time.Nanosecond
}

func (c *tempoClock) setTempo(bpm float64) {
	c.microsecondsPerBeat = int64(60000000/bpm + 0.5)
}
