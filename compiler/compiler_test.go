package compiler

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"soundchip/chip"
	"soundchip/debug"
	"soundchip/midi"
	"soundchip/voice"
)

func init() {
	debug.SetWarnOutput(nil)
}

func on(note, channel, velocity uint8, gap time.Duration) midi.Event {
	return midi.Event{Kind: midi.NoteOn, Note: note, Channel: channel, Velocity: velocity, Gap: gap}
}

func off(note, channel uint8, gap time.Duration) midi.Event {
	return midi.Event{Kind: midi.NoteOff, Note: note, Channel: channel, Gap: gap}
}

const prologue = "fla 0\nlib song\nloz songlen\n\n:loop\nadd\nsnx\n\nina\nina\n"
const epilogue = "add\nlax\nwtx\n\nina\n\ndcz\njz end\n\njmp loop\n\n:end\nhlt\n\n:songlen\n"

func TestCompileSingleNote(t *testing.T) {
	format := chip.Format{Channels: 1, Voices: 1, MixerWords: 1}
	prog, err := Compile([]midi.Event{on(60, 0, 5, 0), off(60, 0, 0)}, chip.DefaultTable(1), format, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	want := Sound{FreqAmp: 5<<13 | 261, Mix: 15, DurationMs: 75, SleepMs: 0}
	if len(prog.Sounds) != 1 || prog.Sounds[0] != want {
		t.Fatalf("sounds = %+v, want [%+v]", prog.Sounds, want)
	}

	var buf bytes.Buffer
	if _, err := prog.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	text := prologue + "ina\n" + epilogue + "1\n:song\n41221\n15\n75\n0\n"
	if buf.String() != text {
		t.Errorf("program text:\n%q\nwant:\n%q", buf.String(), text)
	}
}

func TestCompileDurationsAndSleeps(t *testing.T) {
	format := chip.Format{Channels: 2, Voices: 4, MixerWords: 1}
	tests := []struct {
		name      string
		events    []midi.Event
		durations []uint32
		sleeps    []uint32
	}{
		{
			name:      "held notes extend",
			events:    []midi.Event{on(60, 0, 7, 0), on(64, 0, 7, 500*time.Millisecond), off(60, 0, 0), off(64, 0, 0)},
			durations: []uint32{500, 500},
			sleeps:    []uint32{0, 500},
		},
		{
			name:      "release gaps add to last sleep",
			events:    []midi.Event{on(60, 0, 7, 100*time.Millisecond), on(64, 1, 7, 100*time.Millisecond), off(64, 1, 300*time.Millisecond), off(60, 0, 0)},
			durations: []uint32{500, 100},
			sleeps:    []uint32{100, 400},
		},
		{
			name:      "short notes clamp",
			events:    []midi.Event{on(60, 0, 7, time.Millisecond), off(60, 0, 2*time.Second)},
			durations: []uint32{75},
			sleeps:    []uint32{2001},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Compile(tt.events, nil, format, DefaultOptions())
			if err != nil {
				t.Fatal(err)
			}
			if len(prog.Sounds) != len(tt.durations) {
				t.Fatalf("got %d sounds, want %d", len(prog.Sounds), len(tt.durations))
			}
			for i, s := range prog.Sounds {
				if s.DurationMs != tt.durations[i] || s.SleepMs != tt.sleeps[i] {
					t.Errorf("sound %d = %dms/%dms, want %dms/%dms", i, s.DurationMs, s.SleepMs, tt.durations[i], tt.sleeps[i])
				}
				if s.DurationMs < 75 {
					t.Errorf("sound %d below minimum: %dms", i, s.DurationMs)
				}
			}
		})
	}
}

func TestCompileUnmatchedNoteOff(t *testing.T) {
	_, err := Compile([]midi.Event{on(60, 0, 7, 0), off(62, 0, 0)}, nil, chip.DefaultFormat(), DefaultOptions())
	if !errors.Is(err, voice.ErrUnmatchedNoteOff) {
		t.Errorf("err = %v, want ErrUnmatchedNoteOff", err)
	}
}

func TestFreqAmp(t *testing.T) {
	if got := FreqAmp(7, 69); got != 7<<13|440 {
		t.Errorf("FreqAmp(7, 69) = %d", got)
	}
	// 12543Hz overflows 13 bits
	if got := FreqAmp(0, 127); got != 12543&0x1fff {
		t.Errorf("FreqAmp(0, 127) = %d, want masked", got)
	}
	if got := FreqAmp(9, 69); got>>13 != 1 {
		t.Errorf("velocity not masked to amplitude bits: %d", got>>13)
	}
}

func TestMixWordsHighFirst(t *testing.T) {
	if w := mixWords(0x12345678, 2); len(w) != 2 || w[0] != 0x1234 || w[1] != 0x5678 {
		t.Errorf("two words = %x", w)
	}
	if w := mixWords(0x12345678, 1); len(w) != 1 || w[0] != 0x5678 {
		t.Errorf("one word = %x", w)
	}
	if w := mixWords(15, 0); len(w) != 0 {
		t.Errorf("zero words = %x", w)
	}
}

func TestProgramTwoMixWords(t *testing.T) {
	f := chip.DefaultFields()
	f.NoiseAmp = 1
	table := chip.Table{chip.NewInstrument(f)}
	format := chip.Format{Channels: 1, Voices: 2, MixerWords: 2}

	prog, err := Compile([]midi.Event{on(69, 0, 7, time.Second), off(69, 0, 0)}, table, format, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	prog.WriteTo(&buf)
	text := buf.String()
	if !strings.HasPrefix(text, prologue+"ina\nina\n"+epilogue) {
		t.Errorf("prologue should read one extra word per mixer word:\n%s", text)
	}

	// noise amp sits at bit 27: high word 0x0800, low word 15
	data := strings.TrimPrefix(text, prologue+"ina\nina\n"+epilogue)
	want := "1\n:song\n57784\n2048\n15\n1000\n1000\n"
	if data != want {
		t.Errorf("song data = %q, want %q", data, want)
	}
}

func TestWriteFile(t *testing.T) {
	prog := &Program{Sounds: []Sound{{FreqAmp: 1, Mix: 2, DurationMs: 3, SleepMs: 4}}, MixerWords: 1}
	path := filepath.Join(t.TempDir(), "song.ocpu")
	if err := prog.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), ":song\n1\n2\n3\n4\n") {
		t.Errorf("file ends with %q", data[len(data)-20:])
	}
}
