package main

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"soundchip/chip"
	"soundchip/config"
	"soundchip/debug"
	"soundchip/midi"
	"soundchip/scts"
)

// Session is one input file resolved to a timeline, its chip layout and
// its instrument table. Loading never changes the Config it was given.
type Session struct {
	Path    string
	Format  chip.Format
	Profile chip.Profile
	Table   chip.Table
	Events  []midi.Event
}

// base strips the extension: song.mid -> song
func (s *Session) base() string {
	return strings.TrimSuffix(s.Path, filepath.Ext(s.Path))
}

func isMIDI(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi", ".smf":
		return true
	}
	return false
}

// prepare loads the instrument table override and settles the chip
// layout. cfg is a copy; the caller's settings stay as they were.
func prepare(path string, cfg *config.Config, o *config.Overrides) (*Session, chip.Table, error) {
	var table chip.Table
	if o.Instruments != "" {
		t, err := chip.LoadTable(o.Instruments)
		if err != nil {
			return nil, nil, err
		}
		table = t
		debug.Log("cli", "loaded %d instruments from %s", len(t), o.Instruments)
	}

	if o.DetectChannels {
		n := chip.DefaultChannels
		if table != nil {
			n = len(table)
		}
		cfg.Chip.Channels = n
	}
	cfg.Sanitize()

	return &Session{Path: path, Format: cfg.Format(), Profile: cfg.Profile()}, table, nil
}

// LoadSession reads path. MIDI files are normalized with the configured
// channel filter; anything else is decoded as SCTS.
func LoadSession(path string, cfg config.Config, o *config.Overrides) (*Session, error) {
	s, table, err := prepare(path, &cfg, o)
	if err != nil {
		return nil, err
	}

	if isMIDI(path) {
		stream, err := midi.OpenSMF(path)
		if err != nil {
			return nil, err
		}
		events, err := midi.Normalize(stream, cfg.ChannelFilter())
		if err != nil {
			return nil, errors.Wrapf(err, "normalize %s", path)
		}
		s.Events = events
		s.Table = table.Fit(s.Format.Channels)

		if o.Export {
			out := s.base() + ".scts"
			if err := scts.EncodeFile(out, s.Format, s.Profile, s.Table, s.Events); err != nil {
				return nil, errors.Wrapf(err, "export %s", out)
			}
			debug.Log("cli", "exported %s", out)
		}
	} else {
		stream, err := scts.DecodeFile(path, scts.Options{Profile: s.Profile, Table: table})
		if err != nil {
			return nil, err
		}
		if err := stream.Format.Validate(s.Profile); err != nil {
			return nil, errors.Wrapf(scts.ErrMalformedStream, "%s: %v", path, err)
		}
		s.Format = stream.Format
		s.Table = stream.Instruments
		s.Events = stream.Events
	}

	if err := s.extract(o); err != nil {
		return nil, err
	}

	debug.Log("cli", "%s: %s, %d events", path, s.Format, len(s.Events))
	return s, nil
}

// RecordSession normalizes src until it ends and writes the result to path
// as SCTS
func RecordSession(path string, src midi.Source, cfg config.Config, o *config.Overrides) (*Session, error) {
	s, table, err := prepare(path, &cfg, o)
	if err != nil {
		return nil, err
	}

	events, err := midi.Normalize(src, cfg.ChannelFilter())
	if err != nil {
		return nil, errors.Wrap(err, "record")
	}
	s.Events = events
	s.Table = table.Fit(s.Format.Channels)

	if len(events) == 0 {
		return nil, errors.Wrap(scts.ErrNoEvents, "nothing played")
	}
	if err := scts.EncodeFile(path, s.Format, s.Profile, s.Table, s.Events); err != nil {
		return nil, errors.Wrapf(err, "write %s", path)
	}
	if err := s.extract(o); err != nil {
		return nil, err
	}
	debug.Log("cli", "recorded %d events to %s", len(events), path)
	return s, nil
}

func (s *Session) extract(o *config.Overrides) error {
	if o.Extract != "" {
		if err := chip.SaveTable(o.Extract, s.Table); err != nil {
			return errors.Wrapf(err, "extract instruments to %s", o.Extract)
		}
	}
	return nil
}
