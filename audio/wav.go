package audio

import (
	"io"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"soundchip/debug"
)

const (
	wavBitDepth = 16
	wavChannels = 1
	wavPCM      = 1
)

type voiceLoop struct {
	samples []int16
	pos     int
}

// WAVSink mixes voices into a mono 16-bit WAV file instead of a device.
// The player advances it by each event gap, so rendering runs as fast as
// the mixing does.
type WAVSink struct {
	w          io.WriteSeeker
	file       *os.File // set when the sink created the file
	sampleRate int
	voices     map[slot]*voiceLoop
	out        []int
	carry      float64 // fractional samples owed by previous advances
}

// NewWAVSink renders into w
func NewWAVSink(w io.WriteSeeker, sampleRate int) *WAVSink {
	return &WAVSink{
		w:          w,
		sampleRate: sampleRate,
		voices:     make(map[slot]*voiceLoop),
	}
}

// CreateWAV renders into a new file at path
func CreateWAV(path string, sampleRate int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := NewWAVSink(f, sampleRate)
	s.file = f
	return s, nil
}

// Play starts looping samples on a slot from their beginning
func (s *WAVSink) Play(channel, voice int, samples []int16) {
	if len(samples) == 0 {
		delete(s.voices, slot{channel, voice})
		return
	}
	s.voices[slot{channel, voice}] = &voiceLoop{samples: samples}
}

// Stop silences a slot
func (s *WAVSink) Stop(channel, voice int) {
	delete(s.voices, slot{channel, voice})
}

// Busy reports whether a slot is sounding
func (s *WAVSink) Busy(channel, voice int) bool {
	_, ok := s.voices[slot{channel, voice}]
	return ok
}

// Advance mixes d worth of audio from every sounding voice
func (s *WAVSink) Advance(d time.Duration) {
	exact := d.Seconds()*float64(s.sampleRate) + s.carry
	n := int(exact)
	s.carry = exact - float64(n)

	for i := 0; i < n; i++ {
		sum := 0
		for _, v := range s.voices {
			sum += int(v.samples[v.pos])
			v.pos++
			if v.pos == len(v.samples) {
				v.pos = 0
			}
		}
		s.out = append(s.out, clip16(sum))
	}
}

// Len is the number of samples rendered so far
func (s *WAVSink) Len() int {
	return len(s.out)
}

func clip16(v int) int {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return v
}

// Close writes the WAV file
func (s *WAVSink) Close() error {
	enc := wav.NewEncoder(s.w, s.sampleRate, wavBitDepth, wavChannels, wavPCM)
	buf := &goaudio.IntBuffer{
		Data:           s.out,
		Format:         &goaudio.Format{SampleRate: s.sampleRate, NumChannels: wavChannels},
		SourceBitDepth: wavBitDepth,
	}

	err := enc.Write(buf)
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return errors.Wrap(err, "write wav")
	}
	debug.Log("audio", "wrote %d samples (%.2fs)", len(s.out), float64(len(s.out))/float64(s.sampleRate))
	return nil
}
