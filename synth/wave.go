// Package synth renders the chip's fixed-function waveforms into sample
// buffers for previewing.
package synth

import (
	"math"
	"math/rand/v2"

	"soundchip/chip"
)

const twoPi = 2 * math.Pi

// Square is a ±1 square wave with period 2π, high for the first duty
// fraction of each period. Duty outside 0..1 gives silence.
func Square(t, duty float64) float64 {
	if duty < 0 || duty > 1 {
		return 0
	}
	if wrap(t) < duty*twoPi {
		return 1
	}
	return -1
}

// Sawtooth rises from -1 to 1 over the first width fraction of each 2π
// period and falls back to -1 over the rest. Width 0.5 is a triangle.
func Sawtooth(t, width float64) float64 {
	if width < 0 || width > 1 {
		return 0
	}
	tm := wrap(t)
	if tm < width*twoPi {
		return tm/(math.Pi*width) - 1
	}
	return (math.Pi*(width+1) - tm) / (math.Pi * (1 - width))
}

func wrap(t float64) float64 {
	tm := math.Mod(t, twoPi)
	if tm < 0 {
		tm += twoPi
	}
	return tm
}

func ratio(v int, f chip.Field) float64 {
	return float64(v) / float64(f.Max())
}

// Mix sums the instrument's oscillators at each phase. The phase already
// includes the note frequency. Without mixer words the chip plays a plain
// square; the second word adds the duty square and noise.
func Mix(phase []float64, inst chip.Instrument, mixerWords int, rng *rand.Rand) []float64 {
	out := make([]float64, len(phase))
	if mixerWords <= 0 {
		for i, t := range phase {
			out[i] = Square(t, 0.5)
		}
		return out
	}

	sqAmp := ratio(inst.Get(chip.SquareAmp), chip.SquareAmp)
	sawAmp := ratio(inst.Get(chip.SawtoothAmp), chip.SawtoothAmp)
	sawWidth := ratio(inst.Get(chip.SawtoothWidth), chip.SawtoothWidth)
	pwm := inst.Get(chip.SquarePWM)
	pwmWidth := ratio(pwm, chip.SquarePWM)

	for i, t := range phase {
		duty := 0.5
		if pwm != 0 {
			// the modulating sawtooth swings ±1, the duty needs 0..1
			duty = (Sawtooth(t, pwmWidth) + 1) / 2
		}
		out[i] = sqAmp*Square(t, duty) + sawAmp*Sawtooth(t, sawWidth)
	}

	if mixerWords < 2 {
		return out
	}

	ndAmp := ratio(inst.Get(chip.NDSquareAmp), chip.NDSquareAmp)
	duty := ratio(inst.Get(chip.SquareDuty), chip.SquareDuty)
	noiseAmp := ratio(inst.Get(chip.NoiseAmp), chip.NoiseAmp)
	for i, t := range phase {
		out[i] += ndAmp * Square(t, duty)
		if noiseAmp != 0 && rng != nil {
			out[i] += noiseAmp * (rng.Float64()*2 - 1)
		}
	}
	return out
}
