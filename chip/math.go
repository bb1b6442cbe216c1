package chip

import "math"

// Translate linearly rescales value from [min, max] to [minOut, maxOut],
// truncating toward zero.
func Translate(value, min, max, minOut, maxOut float64) int {
	if max == min {
		return int(minOut)
	}
	scaled := (value - min) / (max - min)
	return int(minOut + scaled*(maxOut-minOut))
}

// PitchToFrequency maps a MIDI note to its equal-tempered frequency in Hz,
// truncated. A4 (69) is 440.
func PitchToFrequency(note int) int {
	return int(440 * math.Pow(2, float64(note-69)/12))
}

// VelocityToAmp maps a 0..127 MIDI velocity onto the chip's amplitude field
func VelocityToAmp(velocity uint8) uint8 {
	return uint8(Translate(float64(velocity), 0, 127, 0, MaxAmp))
}
