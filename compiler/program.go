package compiler

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"text/template"

	"soundchip/chip"
)

//go:embed program.tmpl
var programSource string

var programTemplate = template.Must(template.New("program").Parse(programSource))

// Program is a compiled song ready to be written as VM source
type Program struct {
	Sounds     []Sound
	MixerWords int
}

// WriteTo writes the player loop followed by the song data, one decimal
// per line. Mix values split over two words go high word first.
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	err := programTemplate.Execute(&buf, struct {
		MixWords []struct{}
		Count    int
	}{
		MixWords: make([]struct{}, p.MixerWords),
		Count:    len(p.Sounds),
	})
	if err != nil {
		return 0, err
	}

	for _, s := range p.Sounds {
		fmt.Fprintf(&buf, "%d\n", s.FreqAmp)
		for _, word := range mixWords(s.Mix, p.MixerWords) {
			fmt.Fprintf(&buf, "%d\n", word)
		}
		fmt.Fprintf(&buf, "%d\n%d\n", s.DurationMs, s.SleepMs)
	}

	return buf.WriteTo(w)
}

func mixWords(mix uint32, mixerWords int) []uint16 {
	switch mixerWords {
	case 0:
		return nil
	case 1:
		return []uint16{uint16(chip.Mask(mix, chip.WordBits))}
	}
	return []uint16{uint16(mix >> chip.WordBits), uint16(mix)}
}

// WriteFile writes the program to path
func (p *Program) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if _, err := p.WriteTo(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
