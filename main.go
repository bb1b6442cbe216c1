package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"soundchip/audio"
	"soundchip/compiler"
	"soundchip/config"
	"soundchip/debug"
	"soundchip/midi"
	"soundchip/preview"
	"soundchip/synth"
	"soundchip/theme"
	"soundchip/tui"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer, fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintln(w, "Custom sound chip tool")
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Usage: soundchip [options] <command> <file>")
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Commands:")
		fmt.Fprintln(w, "  convert    - .mid or .scts to <base>.ocpu program text")
		fmt.Fprintln(w, "  visualize  - play through the sound device with a voice monitor")
		fmt.Fprintln(w, "  render     - play offline into <base>.wav")
		fmt.Fprintln(w, "  record     - capture --midi-in into an .scts file until Ctrl+C")
	fmt.Fprintln(w, "  ports      - list MIDI ports")
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Options:")
		fs.SetOutput(w)
		fs.PrintDefaults()
	}
}

// parseArgs lets options appear before, between or after positionals
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	var o config.Overrides
	fs := flag.NewFlagSet("soundchip", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = usage(stderr, fs)
	o.Register(fs)

	positional, err := parseArgs(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) == 0 {
		usage(stdout, fs)()
		return 0
	}

	if o.Debug {
		if err := debug.Enable(""); err != nil {
			fmt.Fprintf(stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	var cfg *config.Config
	if o.ConfigPath != "" {
		cfg, err = config.LoadFile(o.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	cfg.Apply(&o)

	cmd := positional[0]
	switch cmd {
	case "ports":
		err = listPorts(stdout)
	case "convert", "visualize", "render":
		if len(positional) < 2 {
			fmt.Fprintf(stderr, "%s needs a file\n", cmd)
			return 2
		}
		err = runFile(cmd, positional[1], cfg, &o, stdout)
	case "record":
		if len(positional) < 2 {
			fmt.Fprintln(stderr, "record needs an output file")
			return 2
		}
		err = record(positional[1], cfg, &o, stdout)
	default:
		fmt.Fprintln(stdout, "unknown command")
		return 1
	}

	if err != nil {
		debug.Log("cli", "%s failed: %+v", cmd, err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runFile(cmd, path string, cfg *config.Config, o *config.Overrides, stdout io.Writer) error {
	s, err := LoadSession(path, *cfg, o)
	if err != nil {
		return err
	}

	switch cmd {
	case "convert":
		return convert(s, cfg, stdout)
	case "render":
		return render(s, cfg, stdout)
	}
	return visualize(s, cfg, o.Headless, stdout)
}

func convert(s *Session, cfg *config.Config, stdout io.Writer) error {
	for _, ev := range s.Events {
		debug.Log("compile", "%s", ev)
	}

	prog, err := compiler.Compile(s.Events, s.Table, s.Format, compiler.Options{MinNoteTime: cfg.MinNoteTime()})
	if err != nil {
		return errors.Wrapf(err, "convert %s", s.Path)
	}

	out := s.base() + ".ocpu"
	fmt.Fprintln(stdout, "Writing to file...")
	if err := prog.WriteFile(out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d sounds\n", out, len(prog.Sounds))
	return nil
}

func newPlayer(s *Session, cfg *config.Config, sink preview.Sink) *preview.Player {
	return preview.NewPlayer(s.Format, s.Table, synth.New(cfg.SynthOptions(), nil), sink)
}

func render(s *Session, cfg *config.Config, stdout io.Writer) error {
	out := s.base() + ".wav"
	sink, err := audio.CreateWAV(out, cfg.Preview.SampleRate)
	if err != nil {
		return err
	}

	p := newPlayer(s, cfg, sink)
	if err := p.Run(context.Background(), s.Events); err != nil {
		sink.Close()
		return errors.Wrapf(err, "render %s", s.Path)
	}
	if err := sink.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %.2fs\n", out, float64(sink.Len())/float64(cfg.Preview.SampleRate))
	return nil
}

func visualize(s *Session, cfg *config.Config, headless bool, stdout io.Writer) error {
	sink, err := audio.OpenDevice(cfg.Preview.SampleRate)
	if err != nil {
		return err
	}
	defer sink.Close()

	p := newPlayer(s, cfg, sink)

	if cfg.Preview.MidiOut != "" {
		mirror, err := midi.OpenPortMirror(cfg.Preview.MidiOut)
		if err != nil {
			return err
		}
		defer gomidi.CloseDriver()
		p.Observe(preview.ObserverFunc(func(u preview.Update) {
			if u.Done {
				return
			}
			if err := mirror.Forward(u.Event); err != nil {
				debug.LogEvery(32, "midi", "forward to %s: %v", mirror.Name(), err)
			}
		}))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if headless {
		p.Observe(preview.ObserverFunc(func(u preview.Update) {
			if !u.Done {
				fmt.Fprintln(stdout, u.Event)
			}
		}))
		return quiet(p.Run(ctx, s.Events))
	}

	palette, err := theme.Load(cfg.UI.Palette)
	if err != nil {
		debug.Warn("cli", "palette: %v, using %s", err, theme.DefaultPalette)
		palette, _ = theme.Load("")
	}

	mon := tui.NewMonitor(s.Format)
	p.Observe(mon)

	errc := make(chan error, 1)
	go func() {
		errc <- p.Run(ctx, s.Events)
	}()

	m := tui.NewModel(filepath.Base(s.Path), s.Format, mon, theme.New(palette), cancel)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		cancel()
		<-errc
		return err
	}
	cancel()
	return quiet(<-errc)
}

func record(path string, cfg *config.Config, o *config.Overrides, stdout io.Writer) error {
	if cfg.Preview.MidiIn == "" {
		return errors.New("record needs --midi-in")
	}
	src, err := midi.OpenLiveSource(cfg.Preview.MidiIn)
	if err != nil {
		return err
	}
	defer gomidi.CloseDriver()
	defer src.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	go func() {
		<-ctx.Done()
		src.Close()
	}()

	fmt.Fprintf(stdout, "Recording from %s, Ctrl+C to stop\n", src.Name())
	s, err := RecordSession(path, src, *cfg, o)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d events\n", path, len(s.Events))
	return nil
}

// quiet drops the error of a preview the user stopped
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func listPorts(stdout io.Writer) error {
	defer gomidi.CloseDriver()

	fmt.Fprintln(stdout, "(waiting up to 3 seconds...)")
	for _, section := range []struct {
		title string
		list  func() ([]string, error)
	}{
		{"=== MIDI Input Ports ===", midi.ListInPorts},
		{"=== MIDI Output Ports ===", midi.ListOutPorts},
	} {
		names, err := section.list()
		if err != nil {
			if errors.Is(err, midi.ErrPortTimeout) {
				fmt.Fprintln(stdout, "Fix: sudo killall coreaudiod midiserver")
			}
			return err
		}
		fmt.Fprintln(stdout, section.title)
		for i, name := range names {
			fmt.Fprintf(stdout, "  %d: %s\n", i, name)
		}
	}
	return nil
}
