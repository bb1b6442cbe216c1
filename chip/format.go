// Package chip holds the fixed-function sound chip model: bit widths, the
// stream format descriptor and the instrument (mixer word) encoding.
package chip

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Word and field widths of the chip
const (
	WordBits      = 16
	FreqBits      = 13
	AmpBits       = WordBits - FreqBits
	MaxAmp        = 1<<AmpBits - 1
	NoteBits      = 7
	ChannelBits   = 8
	VoiceBits     = 8
	MixerWordBits = 2
	MaxMixerWords = 2
)

// Reference defaults
const (
	DefaultChannels   = 16
	DefaultVoices     = 16
	DefaultMixerWords = 1
)

// Profile selects the SCTS header layout.
type Profile int

const (
	// Extended carries the 2-bit mixer word count in the header
	Extended Profile = iota
	// Narrow has no mixer word field; exactly one word per instrument
	Narrow
)

func (p Profile) String() string {
	switch p {
	case Extended:
		return "extended"
	case Narrow:
		return "narrow"
	}
	return fmt.Sprintf("profile(%d)", int(p))
}

// ParseProfile accepts "extended" or "narrow" (case-insensitive)
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "extended", "":
		return Extended, nil
	case "narrow":
		return Narrow, nil
	}
	return Extended, errors.Errorf("unknown profile %q", s)
}

// Format describes a stream: how many channels, how many voices each
// channel can sound at once, and how many mixer words encode an instrument.
// It is a plain value; pass it along, never store it globally.
type Format struct {
	Channels   int
	Voices     int
	MixerWords int
}

// DefaultFormat returns the reference 16x16, one mixer word layout
func DefaultFormat() Format {
	return Format{
		Channels:   DefaultChannels,
		Voices:     DefaultVoices,
		MixerWords: DefaultMixerWords,
	}
}

// Validate checks the format fits the header fields of the given profile
func (f Format) Validate(p Profile) error {
	if f.Channels < 1 || f.Channels > 1<<ChannelBits-1 {
		return errors.Errorf("channel count %d out of range 1..%d", f.Channels, 1<<ChannelBits-1)
	}
	if f.Voices < 1 || f.Voices > 1<<VoiceBits-1 {
		return errors.Errorf("voices per channel %d out of range 1..%d", f.Voices, 1<<VoiceBits-1)
	}
	if f.MixerWords < 0 || f.MixerWords > MaxMixerWords {
		return errors.Errorf("mixer word count %d out of range 0..%d", f.MixerWords, MaxMixerWords)
	}
	if p == Narrow && f.MixerWords != 1 {
		return errors.Errorf("narrow profile needs exactly 1 mixer word, got %d", f.MixerWords)
	}
	return nil
}

// InstrumentBits is the width of one instrument in the stream
func (f Format) InstrumentBits() int {
	return WordBits * f.MixerWords
}

func (f Format) String() string {
	return fmt.Sprintf("%d channels x %d voices, %d mixer word(s)", f.Channels, f.Voices, f.MixerWords)
}

// Mask keeps the low bits of v
func Mask(v uint32, bits int) uint32 {
	return v & (1<<uint(bits) - 1)
}
