package synth

import (
	"math"
	"math/rand/v2"
	"time"

	"soundchip/chip"
)

// Reference preview settings
const (
	DefaultSampleRate = 30000
	DefaultPeak       = 500
	DefaultLength     = time.Second
)

// Options configures rendered buffers
type Options struct {
	SampleRate int
	Peak       int           // sample value at full velocity
	Length     time.Duration // buffer length; the sink loops it
}

// DefaultOptions returns the reference preview settings
func DefaultOptions() Options {
	return Options{
		SampleRate: DefaultSampleRate,
		Peak:       DefaultPeak,
		Length:     DefaultLength,
	}
}

// Phase returns 2π·t for every sample of a buffer of the given length
func Phase(sampleRate int, length time.Duration) []float64 {
	n := int(math.Ceil(length.Seconds()*float64(sampleRate) - 1e-9))
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = twoPi * float64(i) / float64(sampleRate)
	}
	return out
}

// Synth renders note buffers. It keeps the base phase between notes and
// owns the noise source, so a Synth must not be shared between goroutines.
type Synth struct {
	opts  Options
	base  []float64
	phase []float64
	rng   *rand.Rand
}

// New creates a Synth. rng feeds the noise oscillator; nil picks a
// randomly seeded one.
func New(opts Options, rng *rand.Rand) *Synth {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	base := Phase(opts.SampleRate, opts.Length)
	return &Synth{
		opts:  opts,
		base:  base,
		phase: make([]float64, len(base)),
		rng:   rng,
	}
}

// Options returns the settings the synth renders with
func (s *Synth) Options() Options {
	return s.opts
}

// Render produces one looping buffer for note at velocity (chip amplitude
// domain) with the channel's instrument.
func (s *Synth) Render(note, velocity uint8, inst chip.Instrument, mixerWords int) []int16 {
	freq := float64(chip.PitchToFrequency(int(note)))
	for i, t := range s.base {
		s.phase[i] = t * freq
	}

	wave := Mix(s.phase, inst, mixerWords, s.rng)
	amp := float64(chip.Translate(float64(velocity), 0, chip.MaxAmp, 0, float64(s.opts.Peak)))

	out := make([]int16, len(wave))
	for i, v := range wave {
		out[i] = clip(amp * v)
	}
	return out
}

func clip(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
