package config

import (
	"flag"
	"strconv"
)

// OptionalInt is a numeric flag that never fails the parse. A value that is
// not an integer is reported as ErrInvalidConfiguration and left unset, so
// the configured default stays in effect.
type OptionalInt struct {
	name  string
	Value int
	Valid bool
}

func (o *OptionalInt) String() string {
	if o == nil || !o.Valid {
		return ""
	}
	return strconv.Itoa(o.Value)
}

func (o *OptionalInt) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		invalid("%s value %q, using default", o.name, s)
		o.Valid = false
		return nil
	}
	o.Value = n
	o.Valid = true
	return nil
}

// Overrides holds command-line settings. Only flags actually given replace
// values from the config file.
type Overrides struct {
	Channels   OptionalInt
	Voices     OptionalInt
	MinNoteMs  OptionalInt
	MixerWords OptionalInt
	Profile    string
	Filter     string
	MidiOut    string
	MidiIn     string

	ConfigPath     string
	Instruments    string // instrument table to use instead of the stream's
	Extract        string // write the instrument table here
	Export         bool   // also write <base>.scts for MIDI input
	DetectChannels bool   // channel count follows the instrument table
	Headless       bool   // visualize without the monitor
	Debug          bool
}

// Register binds the overrides to fs
func (o *Overrides) Register(fs *flag.FlagSet) {
	o.Channels.name = "channel"
	o.Voices.name = "notes per channel"
	o.MinNoteMs.name = "minimum note time"
	o.MixerWords.name = "mixer word quantity"

	fs.Var(&o.Channels, "channels", "number of chip channels")
	fs.Var(&o.Voices, "notes", "voices per channel")
	fs.Var(&o.MinNoteMs, "min-note-time", "shortest compiled note in ms")
	fs.Var(&o.MixerWords, "mixer-words", "16-bit words per instrument (0-2)")
	fs.StringVar(&o.Profile, "profile", "", "SCTS header profile: extended or narrow")
	fs.StringVar(&o.Filter, "filter", "", "registered channel filter name")
	fs.StringVar(&o.MidiOut, "midi-out", "", "mirror the preview to a MIDI output port")
	fs.StringVar(&o.MidiIn, "midi-in", "", "MIDI input port to record from")

	fs.StringVar(&o.ConfigPath, "config", "", "config file (default ~/.config/soundchip/config.json)")
	fs.StringVar(&o.Instruments, "instruments", "", "instrument table file")
	fs.StringVar(&o.Extract, "extract-instruments", "", "write the instrument table to this file")
	fs.BoolVar(&o.Export, "export", false, "write <base>.scts next to a .mid input")
	fs.BoolVar(&o.DetectChannels, "detect-channels", false, "use one channel per loaded instrument")
	fs.BoolVar(&o.Headless, "headless", false, "visualize without the terminal monitor")
	fs.BoolVar(&o.Debug, "debug", false, "write a debug log to ~/.config/soundchip/debug.log")
}

// Apply copies the given overrides onto c
func (c *Config) Apply(o *Overrides) {
	if o.Channels.Valid {
		c.Chip.Channels = o.Channels.Value
	}
	if o.Voices.Valid {
		c.Chip.Voices = o.Voices.Value
	}
	if o.MinNoteMs.Valid {
		c.Chip.MinNoteMs = o.MinNoteMs.Value
	}
	if o.MixerWords.Valid {
		c.Chip.MixerWords = o.MixerWords.Value
	}
	if o.Profile != "" {
		c.Chip.Profile = o.Profile
	}
	if o.Filter != "" {
		c.Filter = o.Filter
	}
	if o.MidiOut != "" {
		c.Preview.MidiOut = o.MidiOut
	}
	if o.MidiIn != "" {
		c.Preview.MidiIn = o.MidiIn
	}
}
