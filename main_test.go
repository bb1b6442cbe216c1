package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"soundchip/chip"
	"soundchip/config"
	"soundchip/debug"
	"soundchip/midi"
	"soundchip/scts"
)

func init() {
	debug.SetWarnOutput(nil)
}

// format 1, 96 ticks per quarter, 60 bpm, middle C held one beat
var oneNoteSMF = []byte{
	0x4d, 0x54, 0x68, 0x64, 0, 0, 0, 6, 0, 1, 0, 2, 0, 0x60,
	0x4d, 0x54, 0x72, 0x6b, 0, 0, 0, 0x0b,
	0, 0xff, 0x51, 3, 0x0f, 0x42, 0x40,
	0, 0xff, 0x2f, 0,
	0x4d, 0x54, 0x72, 0x6b, 0, 0, 0, 0x0c,
	0, 0x90, 0x3c, 0x64,
	0x60, 0x80, 0x3c, 0x40,
	0, 0xff, 0x2f, 0,
}

func runArgs(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	noConfig := filepath.Join(t.TempDir(), "none.json")
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"--config", noConfig}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeSCTS(t *testing.T, gap time.Duration) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "song.scts")
	events := []midi.Event{
		{Kind: midi.NoteOn, Note: 60, Channel: 0, Velocity: 5, Gap: gap},
		{Kind: midi.NoteOff, Note: 60, Channel: 0},
	}
	format := chip.Format{Channels: 1, Voices: 1, MixerWords: 1}
	if err := scts.EncodeFile(path, format, chip.Extended, chip.DefaultTable(1), events); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseArgsInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	export := fs.Bool("export", false, "")
	notes := fs.Int("notes", 16, "")

	pos, err := parseArgs(fs, []string{"convert", "--export", "song.mid", "--notes", "4"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pos) != 2 || pos[0] != "convert" || pos[1] != "song.mid" {
		t.Errorf("positional = %v", pos)
	}
	if !*export || *notes != 4 {
		t.Errorf("export = %v, notes = %d", *export, *notes)
	}
}

func TestUnknownCommand(t *testing.T) {
	code, stdout, _ := runArgs(t, "dance", "song.mid")
	if code == 0 || stdout != "unknown command\n" {
		t.Errorf("code %d, stdout %q", code, stdout)
	}
}

func TestNoArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 0 {
		t.Errorf("code = %d", code)
	}
	if !strings.Contains(stdout.String(), "Custom sound chip tool") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestConvertSCTS(t *testing.T) {
	path := writeSCTS(t, 0)
	code, _, stderr := runArgs(t, "convert", path)
	if code != 0 {
		t.Fatalf("code %d: %s", code, stderr)
	}

	data, err := os.ReadFile(strings.TrimSuffix(path, ".scts") + ".ocpu")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), ":songlen\n1\n:song\n41221\n15\n75\n0\n") {
		t.Errorf("program ends with %q", data[len(data)-40:])
	}
}

func TestConvertMIDIExportAndExtract(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tune.mid")
	if err := os.WriteFile(path, oneNoteSMF, 0644); err != nil {
		t.Fatal(err)
	}
	extract := filepath.Join(dir, "instruments.txt")

	code, _, stderr := runArgs(t, "--export", "--channels", "4", "--extract-instruments", extract, "convert", path)
	if code != 0 {
		t.Fatalf("code %d: %s", code, stderr)
	}

	prog, err := os.ReadFile(filepath.Join(dir, "tune.ocpu"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(prog), "1\n:song\n41221\n15\n1000\n1000\n") {
		t.Errorf("program ends with %q", prog[len(prog)-40:])
	}

	s, err := scts.DecodeFile(filepath.Join(dir, "tune.scts"), scts.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Format.Channels != 4 || len(s.Events) != 2 || s.Events[0].Gap != time.Second {
		t.Errorf("exported %v with events %v", s.Format, s.Events)
	}

	table, err := chip.LoadTable(extract)
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 4 {
		t.Errorf("extracted %d instruments, want 4", len(table))
	}
}

func TestDetectChannels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tune.mid")
	os.WriteFile(path, oneNoteSMF, 0644)
	inst := filepath.Join(dir, "inst.txt")
	os.WriteFile(inst, []byte("Instrument(),\nInstrument(squareAmp=3),\n"), 0644)

	code, _, stderr := runArgs(t, "--instruments", inst, "--detect-channels", "--export", "convert", path)
	if code != 0 {
		t.Fatalf("code %d: %s", code, stderr)
	}
	s, err := scts.DecodeFile(filepath.Join(dir, "tune.scts"), scts.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if s.Format.Channels != 2 || s.Instruments[1].Get(chip.SquareAmp) != 3 {
		t.Errorf("format %v, instruments %v", s.Format, s.Instruments)
	}
}

func TestConvertMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.scts")
	os.WriteFile(path, []byte{0x10}, 0644)
	code, _, stderr := runArgs(t, "convert", path)
	if code == 0 || !strings.Contains(stderr, "malformed") {
		t.Errorf("code %d, stderr %q", code, stderr)
	}
	if _, err := os.Stat(strings.TrimSuffix(path, ".scts") + ".ocpu"); !os.IsNotExist(err) {
		t.Error("program written for a malformed stream")
	}
}

func TestRender(t *testing.T) {
	path := writeSCTS(t, 100*time.Millisecond)
	code, _, stderr := runArgs(t, "render", path)
	if code != 0 {
		t.Fatalf("code %d: %s", code, stderr)
	}

	f, err := os.Open(strings.TrimSuffix(path, ".scts") + ".wav")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf.Data) != 3000 {
		t.Fatalf("rendered %d samples, want 100ms at 30kHz", len(buf.Data))
	}
	// velocity 5 of 7 at peak 500, full square
	if buf.Data[0] != 357 {
		t.Errorf("first sample = %d, want 357", buf.Data[0])
	}
}

func TestRecordSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.scts")
	src := midi.NewStream(
		midi.Message{Kind: midi.MessageNoteOn, Note: 60, Channel: 1, Velocity: 127},
		midi.Message{Kind: midi.MessageNoteOff, Note: 60, Channel: 1, Delta: 300 * time.Millisecond},
	)

	cfg := config.DefaultConfig()
	s, err := RecordSession(path, src, *cfg, &config.Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Events) != 2 {
		t.Fatalf("events = %v", s.Events)
	}

	back, err := scts.DecodeFile(path, scts.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if back.Events[0].Gap != 300*time.Millisecond || back.Events[0].Velocity != chip.MaxAmp {
		t.Errorf("decoded %v", back.Events)
	}
}

func TestRecordSessionEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.scts")
	_, err := RecordSession(path, midi.NewStream(), *config.DefaultConfig(), &config.Overrides{})
	if !errors.Is(err, scts.ErrNoEvents) {
		t.Errorf("err = %v, want ErrNoEvents", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file written for an empty take")
	}
}
