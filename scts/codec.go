// Package scts reads and writes the SCTS bit-packed timeline format.
//
// All fields are most-significant-bit first with no padding between them:
//
//	header:      channelCount(8) voicesPerChannel(8) [mixerWordCount(2)]
//	instruments: channelCount x instrumentWord(16 x mixerWordCount)
//	events:      endFlag(1) onOffFlag(1) note(7) channel(8) velocity(3) gapMs(16)
//
// Events repeat until one with endFlag set. The mixer word count is only
// present in the extended profile; the narrow profile implies one word. The
// last byte is zero padded.
package scts

import (
	"bufio"
	"io"
	"os"
	"time"

	"github.com/icza/bitio"
	"github.com/pkg/errors"

	"soundchip/chip"
	"soundchip/debug"
	"soundchip/midi"
)

const (
	flagBits = 1
	gapBits  = 16
	maxGapMs = 1<<gapBits - 1
)

var (
	// ErrMalformedStream means the data ended before the layout it declares
	ErrMalformedStream = errors.New("malformed scts stream")
	// ErrNoEvents is returned when encoding an empty timeline
	ErrNoEvents = errors.New("no events to encode")
)

// Stream is a decoded SCTS file
type Stream struct {
	Format      chip.Format
	Profile     chip.Profile
	Instruments chip.Table
	Events      []midi.Event
}

// Options controls decoding
type Options struct {
	Profile chip.Profile
	// Table, when set, is used instead of the stream's instrument region,
	// which is then only skipped over.
	Table chip.Table
}

// Encode writes format, table and events to w. The table is padded with
// default instruments up to format.Channels.
func Encode(w io.Writer, format chip.Format, profile chip.Profile, table chip.Table, events []midi.Event) error {
	if err := format.Validate(profile); err != nil {
		return errors.Wrap(err, "encode")
	}
	if len(events) == 0 {
		return ErrNoEvents
	}

	bw := bitio.NewWriter(w)
	enc := &encoder{w: bw}

	enc.write(uint64(format.Channels), chip.ChannelBits)
	enc.write(uint64(format.Voices), chip.VoiceBits)
	if profile == chip.Extended {
		enc.write(uint64(format.MixerWords), chip.MixerWordBits)
	}

	if bits := format.InstrumentBits(); bits > 0 {
		for ch := 0; ch < format.Channels; ch++ {
			enc.write(uint64(table.For(ch).Encode(format.MixerWords)), bits)
		}
	}

	last := len(events) - 1
	for i, ev := range events {
		enc.event(ev, i == last)
	}

	if enc.err != nil {
		return errors.Wrap(enc.err, "encode")
	}
	if err := bw.Close(); err != nil {
		return errors.Wrap(err, "flush")
	}
	debug.Log("scts", "encoded %s, %d events", format, len(events))
	return nil
}

type encoder struct {
	w   *bitio.Writer
	err error
}

func (e *encoder) write(v uint64, bits int) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteBits(uint64(chip.Mask(uint32(v), bits)), uint8(bits))
}

func (e *encoder) flag(b bool) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteBool(b)
}

func (e *encoder) event(ev midi.Event, end bool) {
	ms := ev.Gap.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	if ms > maxGapMs {
		debug.Warn("scts", "gap of %dms does not fit %d bits, masking", ms, gapBits)
	}

	e.flag(end)
	e.flag(ev.Kind != midi.NoteOn)
	e.write(uint64(ev.Note), chip.NoteBits)
	e.write(uint64(ev.Channel), chip.ChannelBits)
	e.write(uint64(ev.Velocity), chip.AmpBits)
	e.write(uint64(ms), gapBits)
}

// Decode reads a stream. It stops after the event with the end flag;
// anything after it is ignored.
func Decode(r io.Reader, opts Options) (*Stream, error) {
	dec := &decoder{r: bitio.NewReader(r)}

	var format chip.Format
	format.Channels = int(dec.read(chip.ChannelBits))
	format.Voices = int(dec.read(chip.VoiceBits))
	format.MixerWords = 1
	if opts.Profile == chip.Extended {
		format.MixerWords = int(dec.read(chip.MixerWordBits))
	}
	if dec.err != nil {
		return nil, errors.Wrap(ErrMalformedStream, "short header")
	}

	s := &Stream{Format: format, Profile: opts.Profile}

	bits := format.InstrumentBits()
	switch {
	case opts.Table != nil:
		dec.skip(bits * format.Channels)
		s.Instruments = opts.Table
	case bits == 0:
		s.Instruments = chip.DefaultTable(format.Channels)
	default:
		s.Instruments = make(chip.Table, format.Channels)
		for ch := range s.Instruments {
			s.Instruments[ch] = chip.Decode(uint32(dec.read(bits)), format.MixerWords)
		}
	}
	if dec.err != nil {
		return nil, errors.Wrapf(ErrMalformedStream, "instrument table shorter than %d x %d bits", format.Channels, bits)
	}

	for {
		ev, end := dec.event()
		if dec.err != nil {
			return nil, errors.Wrapf(ErrMalformedStream, "truncated event %d", len(s.Events))
		}
		s.Events = append(s.Events, ev)
		if end {
			break
		}
	}

	debug.Log("scts", "decoded %s, %d events", format, len(s.Events))
	return s, nil
}

type decoder struct {
	r   *bitio.Reader
	err error
}

func (d *decoder) read(bits int) uint64 {
	if d.err != nil || bits == 0 {
		return 0
	}
	var v uint64
	v, d.err = d.r.ReadBits(uint8(bits))
	return v
}

// skip advances past bits without interpreting them
func (d *decoder) skip(bits int) {
	for bits > 0 && d.err == nil {
		n := bits
		if n > 32 {
			n = 32
		}
		d.read(n)
		bits -= n
	}
}

func (d *decoder) event() (midi.Event, bool) {
	end := d.read(flagBits) == 1
	kind := midi.NoteOn
	if d.read(flagBits) == 1 {
		kind = midi.NoteOff
	}
	ev := midi.Event{
		Kind:     kind,
		Note:     uint8(d.read(chip.NoteBits)),
		Channel:  uint8(d.read(chip.ChannelBits)),
		Velocity: uint8(d.read(chip.AmpBits)),
	}
	ev.Gap = time.Duration(d.read(gapBits)) * time.Millisecond
	return ev, end
}

// EncodeFile writes an SCTS file to path
func EncodeFile(path string, format chip.Format, profile chip.Profile, table chip.Table, events []midi.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := Encode(bw, format, profile, table, events); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DecodeFile reads an SCTS file from path
func DecodeFile(path string, opts Options) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Decode(bufio.NewReader(f), opts)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return s, nil
}
