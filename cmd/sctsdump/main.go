// Command sctsdump prints the contents of an SCTS stream.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"soundchip/chip"
	"soundchip/midi"
	"soundchip/scts"
)

func main() {
	profile := flag.String("profile", "extended", "header layout: extended or narrow")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 2 {
		usage()
		return
	}

	p, err := chip.ParseProfile(*profile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	s, err := scts.DecodeFile(flag.Arg(1), scts.Options{Profile: p})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "header":
		printHeader(s)
	case "instruments":
		printInstruments(s)
	case "events":
		printEvents(s.Events)
	case "all":
		printHeader(s)
		fmt.Println()
		printInstruments(s)
		fmt.Println()
		printEvents(s.Events)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("SCTS stream dump")
	fmt.Println("")
	fmt.Println("Usage: sctsdump [-profile narrow] <command> <file.scts>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  header       - Format fields and validity")
	fmt.Println("  instruments  - Instrument table with raw mixer words")
	fmt.Println("  events       - Timeline, one event per line")
	fmt.Println("  all          - Everything above")
}

func printHeader(s *scts.Stream) {
	fmt.Printf("profile:     %s\n", s.Profile)
	fmt.Printf("channels:    %d\n", s.Format.Channels)
	fmt.Printf("voices:      %d\n", s.Format.Voices)
	fmt.Printf("mixer words: %d\n", s.Format.MixerWords)
	if err := s.Format.Validate(s.Profile); err != nil {
		fmt.Printf("invalid:     %v\n", err)
	}
}

func printInstruments(s *scts.Stream) {
	fmt.Printf("=== Instruments (%d) ===\n", len(s.Instruments))
	for i, inst := range s.Instruments {
		fmt.Printf("  %3d: %04x  %s\n", i, inst.Encode(s.Format.MixerWords), inst)
	}
}

func printEvents(events []midi.Event) {
	fmt.Printf("=== Events (%d) ===\n", len(events))
	var at time.Duration
	for _, ev := range events {
		fmt.Printf("  %9s  %s\n", at, ev)
		at += ev.Gap
	}
	fmt.Printf("  %9s  end\n", at)
}
