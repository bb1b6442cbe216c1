package theme

import (
	"bufio"
	"embed"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

//go:embed palettes/*.gpl
var builtin embed.FS

// DefaultPalette is the built-in palette name
const DefaultPalette = "phosphor"

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// ParseGPL reads a GIMP palette. Lines that are not three 0-255 channel
// values (with an optional colour name) are ignored.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if name, ok := strings.CutPrefix(line, "Name:"); ok {
			p.Name = strings.TrimSpace(name)
			continue
		}
		if c, ok := parseColor(line); ok {
			p.Colors = append(p.Colors, c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, errors.New("palette has no colours")
	}
	return p, nil
}

func parseColor(line string) (RGB, bool) {
	var c RGB
	if line == "" || line[0] == '#' {
		return c, false
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return c, false
	}
	for i := range c {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return c, false
		}
		c[i] = uint8(v)
	}
	return c, true
}

// LoadGPL reads a palette file
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Builtin returns one of the embedded palettes by name
func Builtin(name string) (*Palette, error) {
	f, err := builtin.Open("palettes/" + name + ".gpl")
	if err != nil {
		return nil, errors.Errorf("no built-in palette %q", name)
	}
	defer f.Close()
	return ParseGPL(f)
}

// Load resolves a palette setting: empty means the default, a known
// built-in name wins, anything else is read as a file.
func Load(nameOrPath string) (*Palette, error) {
	if nameOrPath == "" {
		nameOrPath = DefaultPalette
	}
	if p, err := Builtin(nameOrPath); err == nil {
		return p, nil
	}
	return LoadGPL(nameOrPath)
}

// Lookup blends the two palette entries around norm (0-1)
func (p *Palette) Lookup(norm float64) RGB {
	last := len(p.Colors) - 1
	switch {
	case norm <= 0 || last == 0:
		return p.Colors[0]
	case norm >= 1:
		return p.Colors[last]
	}

	i, frac := math.Modf(norm * float64(last))
	lo, hi := p.Colors[int(i)], p.Colors[int(i)+1]

	var out RGB
	for ch := range out {
		out[ch] = uint8(float64(lo[ch]) + frac*(float64(hi[ch])-float64(lo[ch])))
	}
	return out
}
