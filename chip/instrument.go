package chip

import (
	"fmt"

	"github.com/pkg/errors"

	"soundchip/debug"
)

// ErrInvalidInstrument is reported when a field does not fit its width.
// Construction recovers by substituting DefaultInstrument.
var ErrInvalidInstrument = errors.New("invalid instrument")

// Field names one bit-field of a mixer word. Order is packing order, lowest
// bits first.
type Field int

const (
	SquareAmp Field = iota
	SquarePWM
	SawtoothAmp
	SawtoothWidth
	NDSquareAmp
	SquareDuty
	NoiseAmp
	numFields
)

// fields packed into the first word
const firstWordFields = SawtoothWidth + 1

var fieldBits = [numFields]int{4, 4, 4, 4, 5, 6, 5}

var fieldNames = [numFields]string{
	"squareAmp",
	"squarePWM",
	"sawtoothAmp",
	"sawtoothWidth",
	"ndSquareAmp",
	"squareDuty",
	"noiseAmp",
}

// Bits returns the declared width of the field
func (f Field) Bits() int { return fieldBits[f] }

// Max returns the largest value the field can hold
func (f Field) Max() int { return 1<<fieldBits[f] - 1 }

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// FieldByName looks a field up by its lowerCamel name
func FieldByName(name string) (Field, bool) {
	for f, n := range fieldNames {
		if n == name {
			return Field(f), true
		}
	}
	return 0, false
}

// Fields is the unchecked, mutable form of an Instrument
type Fields struct {
	SquareAmp     int
	SquarePWM     int
	SawtoothAmp   int
	SawtoothWidth int
	NDSquareAmp   int
	SquareDuty    int
	NoiseAmp      int
}

// DefaultFields matches DefaultInstrument
func DefaultFields() Fields {
	return Fields{SquareAmp: SquareAmp.Max()}
}

func (f *Fields) ptr(field Field) *int {
	switch field {
	case SquareAmp:
		return &f.SquareAmp
	case SquarePWM:
		return &f.SquarePWM
	case SawtoothAmp:
		return &f.SawtoothAmp
	case SawtoothWidth:
		return &f.SawtoothWidth
	case NDSquareAmp:
		return &f.NDSquareAmp
	case SquareDuty:
		return &f.SquareDuty
	case NoiseAmp:
		return &f.NoiseAmp
	}
	return nil
}

// Get returns the value of one field
func (f Fields) Get(field Field) int {
	if p := f.ptr(field); p != nil {
		return *p
	}
	return 0
}

// Set assigns one field
func (f *Fields) Set(field Field, v int) {
	if p := f.ptr(field); p != nil {
		*p = v
	}
}

// Validate reports the first field outside its declared width
func (f Fields) Validate() error {
	for field := Field(0); field < numFields; field++ {
		v := f.Get(field)
		if v < 0 || v > field.Max() {
			return errors.Wrapf(ErrInvalidInstrument, "%s=%d outside 0..%d", field, v, field.Max())
		}
	}
	return nil
}

// Instrument is an immutable, range-checked set of mixer parameters
type Instrument struct {
	v [numFields]uint8
}

// DefaultInstrument is a full-volume plain square wave
var DefaultInstrument = Instrument{v: [numFields]uint8{SquareAmp: uint8(SquareAmp.Max())}}

// NewInstrument builds an instrument from fields. Any out-of-range field
// yields DefaultInstrument and a logged warning.
func NewInstrument(f Fields) Instrument {
	if err := f.Validate(); err != nil {
		debug.Warn("chip", "%v, using default", err)
		return DefaultInstrument
	}
	return fromValid(f)
}

func fromValid(f Fields) Instrument {
	var inst Instrument
	for field := Field(0); field < numFields; field++ {
		inst.v[field] = uint8(f.Get(field))
	}
	return inst
}

// Get returns one field value
func (i Instrument) Get(field Field) int {
	if field < 0 || field >= numFields {
		return 0
	}
	return int(i.v[field])
}

// Fields returns a mutable copy
func (i Instrument) Fields() Fields {
	var f Fields
	for field := Field(0); field < numFields; field++ {
		f.Set(field, int(i.v[field]))
	}
	return f
}

// Encode packs the instrument into a mixer word value. The first word holds
// square amp, PWM, sawtooth amp and width from bit 0 up; with two words the
// ND square amp, square duty and noise amp continue above bit 16.
func (i Instrument) Encode(mixerWords int) uint32 {
	n := firstWordFields
	if mixerWords >= 2 {
		n = numFields
	}

	var word uint32
	shift := 0
	for field := Field(0); field < n; field++ {
		word |= Mask(uint32(i.v[field]), field.Bits()) << uint(shift)
		shift += field.Bits()
	}
	return word
}

// Decode unpacks a mixer word value. Fields are peeled off from the highest
// one down.
func Decode(word uint32, mixerWords int) Instrument {
	n := firstWordFields
	if mixerWords >= 2 {
		n = numFields
	}

	shifts := [numFields]int{}
	total := 0
	for field := Field(0); field < n; field++ {
		shifts[field] = total
		total += field.Bits()
	}
	word = Mask(word, total)

	var inst Instrument
	for field := n - 1; field >= 0; field-- {
		v := word >> uint(shifts[field])
		inst.v[field] = uint8(v)
		word -= v << uint(shifts[field])
	}
	return inst
}

// Words splits the encoding into 16-bit words, high word first
func (i Instrument) Words(mixerWords int) []uint16 {
	word := i.Encode(mixerWords)
	switch {
	case mixerWords <= 0:
		return nil
	case mixerWords == 1:
		return []uint16{uint16(word)}
	}
	return []uint16{uint16(word >> WordBits), uint16(word)}
}

// FromWords is the inverse of Words
func FromWords(words []uint16) Instrument {
	var word uint32
	for _, w := range words {
		word = word<<WordBits | uint32(w)
	}
	return Decode(word, len(words))
}

// String uses the instrument table syntax, positional order
func (i Instrument) String() string {
	return fmt.Sprintf("Instrument(%d, %d, %d, %d, %d, %d, %d)",
		i.v[SawtoothWidth], i.v[SawtoothAmp], i.v[SquarePWM], i.v[SquareAmp],
		i.v[NoiseAmp], i.v[SquareDuty], i.v[NDSquareAmp])
}

// Table holds one instrument per channel
type Table []Instrument

// DefaultTable returns n default instruments
func DefaultTable(n int) Table {
	t := make(Table, n)
	for i := range t {
		t[i] = DefaultInstrument
	}
	return t
}

// For returns the channel's instrument; channels past the end of the table
// get the default.
func (t Table) For(channel int) Instrument {
	if channel < 0 || channel >= len(t) {
		return DefaultInstrument
	}
	return t[channel]
}

// Fit returns a table of exactly n entries, padding with defaults
func (t Table) Fit(n int) Table {
	out := DefaultTable(n)
	copy(out, t)
	return out
}
