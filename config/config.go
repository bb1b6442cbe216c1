package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"soundchip/chip"
	"soundchip/debug"
	"soundchip/midi"
	"soundchip/synth"
)

// ErrInvalidConfiguration marks a setting that was replaced by its default
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ChipConfig describes the target chip layout
type ChipConfig struct {
	Channels   int    `json:"channels"`
	Voices     int    `json:"voices"`
	MixerWords int    `json:"mixerWords"`
	Profile    string `json:"profile,omitempty"`
	MinNoteMs  int    `json:"minNoteMs"`
}

// PreviewConfig controls visualize and render
type PreviewConfig struct {
	SampleRate  int     `json:"sampleRate"`
	Amplitude   int     `json:"amplitude"`
	NoteSeconds float64 `json:"noteSeconds"`
	MidiOut     string  `json:"midiOut,omitempty"` // mirror notes to this port
	MidiIn      string  `json:"midiIn,omitempty"`  // record from this port
}

// UIConfig stores monitor preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // GIMP palette file
}

// Config is the main configuration structure
type Config struct {
	Chip    ChipConfig    `json:"chip"`
	Preview PreviewConfig `json:"preview"`
	// Filter names a registered channel filter
	Filter string `json:"filter,omitempty"`
	// ChannelMap remaps source channels ("9": 2) after Filter
	ChannelMap map[string]int `json:"channelMap,omitempty"`
	UI         UIConfig       `json:"ui,omitempty"`
}

// DefaultConfig returns the reference chip and preview settings
func DefaultConfig() *Config {
	return &Config{
		Chip: ChipConfig{
			Channels:   chip.DefaultChannels,
			Voices:     chip.DefaultVoices,
			MixerWords: chip.DefaultMixerWords,
			Profile:    chip.Extended.String(),
			MinNoteMs:  75,
		},
		Preview: PreviewConfig{
			SampleRate:  synth.DefaultSampleRate,
			Amplitude:   synth.DefaultPeak,
			NoteSeconds: synth.DefaultLength.Seconds(),
		},
		Filter: "identity",
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "soundchip"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default location, or returns defaults if
// there is none
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	debug.Log("config", "loaded %s", path)
	return cfg, nil
}

// Save writes the config to the default location
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func invalid(format string, args ...any) {
	debug.Warn("config", "%v", errors.Wrapf(ErrInvalidConfiguration, format, args...))
}

// Sanitize replaces every out-of-range setting with its default and warns
// about it. The result always yields a valid Format for its Profile.
func (c *Config) Sanitize() {
	def := DefaultConfig()

	profile, err := chip.ParseProfile(c.Chip.Profile)
	if err != nil {
		invalid("%v, using %s", err, def.Chip.Profile)
		c.Chip.Profile = def.Chip.Profile
		profile = chip.Extended
	}

	if c.Chip.Channels < 1 || c.Chip.Channels > 1<<chip.ChannelBits-1 {
		invalid("channel count %d, using %d", c.Chip.Channels, def.Chip.Channels)
		c.Chip.Channels = def.Chip.Channels
	}
	if c.Chip.Voices < 1 || c.Chip.Voices > 1<<chip.VoiceBits-1 {
		invalid("notes per channel %d, using %d", c.Chip.Voices, def.Chip.Voices)
		c.Chip.Voices = def.Chip.Voices
	}
	if c.Chip.MixerWords < 0 || c.Chip.MixerWords > chip.MaxMixerWords ||
		(profile == chip.Narrow && c.Chip.MixerWords != 1) {
		invalid("mixer word quantity %d for %s profile, using %d", c.Chip.MixerWords, profile, def.Chip.MixerWords)
		c.Chip.MixerWords = def.Chip.MixerWords
	}
	if c.Chip.MinNoteMs < 0 {
		invalid("minimum note time %dms, using %d", c.Chip.MinNoteMs, def.Chip.MinNoteMs)
		c.Chip.MinNoteMs = def.Chip.MinNoteMs
	}

	if c.Preview.SampleRate <= 0 {
		invalid("sample rate %d, using %d", c.Preview.SampleRate, def.Preview.SampleRate)
		c.Preview.SampleRate = def.Preview.SampleRate
	}
	if c.Preview.Amplitude < 0 {
		invalid("amplitude %d, using %d", c.Preview.Amplitude, def.Preview.Amplitude)
		c.Preview.Amplitude = def.Preview.Amplitude
	}
	if c.Preview.NoteSeconds <= 0 {
		invalid("note buffer %.2fs, using %.2f", c.Preview.NoteSeconds, def.Preview.NoteSeconds)
		c.Preview.NoteSeconds = def.Preview.NoteSeconds
	}
}

// Format returns the chip layout
func (c *Config) Format() chip.Format {
	return chip.Format{
		Channels:   c.Chip.Channels,
		Voices:     c.Chip.Voices,
		MixerWords: c.Chip.MixerWords,
	}
}

// Profile returns the SCTS header profile, extended when unparsable
func (c *Config) Profile() chip.Profile {
	p, _ := chip.ParseProfile(c.Chip.Profile)
	return p
}

// MinNoteTime returns the compiler's note duration floor
func (c *Config) MinNoteTime() time.Duration {
	return time.Duration(c.Chip.MinNoteMs) * time.Millisecond
}

// SynthOptions returns the preview render settings
func (c *Config) SynthOptions() synth.Options {
	return synth.Options{
		SampleRate: c.Preview.SampleRate,
		Peak:       c.Preview.Amplitude,
		Length:     time.Duration(c.Preview.NoteSeconds * float64(time.Second)),
	}
}

// ChannelFilter resolves Filter in the registry and applies ChannelMap on
// top of it. Unknown names fall back to identity.
func (c *Config) ChannelFilter() midi.ChannelFilter {
	base := midi.Identity
	if c.Filter != "" {
		f, ok := midi.LookupFilter(c.Filter)
		if !ok {
			invalid("unknown filter %q (have %v), using identity", c.Filter, midi.FilterNames())
		} else {
			base = f
		}
	}
	if len(c.ChannelMap) == 0 {
		return base
	}

	remap := make(midi.RemapFilter, len(c.ChannelMap))
	for from, to := range c.ChannelMap {
		n, err := strconv.Atoi(from)
		if err != nil || n < 0 || n > 255 || to < 0 || to > 255 {
			invalid("channel map entry %q: %d ignored", from, to)
			continue
		}
		remap[uint8(n)] = uint8(to)
	}
	return midi.ChannelFilterFunc(func(channel uint8) uint8 {
		return remap.Filter(base.Filter(channel))
	})
}
