// Package preview replays a timeline at wall-clock speed against an audio
// sink, allocating voices the same way the chip does.
package preview

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"soundchip/chip"
	"soundchip/debug"
	"soundchip/midi"
	"soundchip/synth"
	"soundchip/voice"
)

// Sink plays looping sample buffers on (channel, voice) slots
type Sink interface {
	Play(channel, voice int, samples []int16)
	Stop(channel, voice int)
	Busy(channel, voice int) bool
}

// Advancer is implemented by offline sinks. The player hands them the gap
// instead of sleeping.
type Advancer interface {
	Advance(d time.Duration)
}

// Update describes one step of a preview run
type Update struct {
	Index   int // event index
	Total   int
	Event   midi.Event
	Voice   int // slot the event started or stopped, -1 for none
	Elapsed time.Duration
	Done    bool
	Err     error
}

// Observer is notified after every event and once when the run ends
type Observer interface {
	Observe(Update)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Update)

func (f ObserverFunc) Observe(u Update) { f(u) }

// Player owns one preview session
type Player struct {
	format    chip.Format
	table     chip.Table
	synth     *synth.Synth
	sink      Sink
	observers []Observer

	// Now and Sleep are replaceable for tests
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPlayer creates a player for a decoded or normalized timeline
func NewPlayer(format chip.Format, table chip.Table, s *synth.Synth, sink Sink) *Player {
	return &Player{
		format: format,
		table:  table,
		synth:  s,
		sink:   sink,
		Now:    time.Now,
		Sleep:  sleep,
	}
}

// Observe registers an observer
func (p *Player) Observe(o Observer) {
	p.observers = append(p.observers, o)
}

func (p *Player) notify(u Update) {
	for _, o := range p.observers {
		o.Observe(u)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Run plays events in order. After each event it waits for the event's
// gap minus the time spent handling it. Cancelling ctx stops the run
// before the next event; the error is ctx.Err().
func (p *Player) Run(ctx context.Context, events []midi.Event) (err error) {
	alloc := voice.NewAllocator(p.format, p.sink)
	adv, offline := p.sink.(Advancer)
	start := p.Now()

	defer func() {
		for _, n := range alloc.Held() {
			p.sink.Stop(n.Channel, n.Voice)
		}
		p.notify(Update{Index: len(events), Total: len(events), Voice: -1, Elapsed: p.Now().Sub(start), Done: true, Err: err})
	}()

	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			debug.Log("preview", "cancelled at event %d/%d", i, len(events))
			return err
		}
		handled := p.Now()

		slot, err := p.apply(alloc, ev)
		if err != nil {
			return errors.Wrapf(err, "event %d", i)
		}
		p.notify(Update{Index: i, Total: len(events), Event: ev, Voice: slot, Elapsed: p.Now().Sub(start)})

		if ev.Gap == 0 {
			continue
		}
		if offline {
			adv.Advance(ev.Gap)
			continue
		}
		if wait := ev.Gap - p.Now().Sub(handled); wait > 0 {
			if err := p.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Player) apply(alloc *voice.Allocator, ev midi.Event) (int, error) {
	switch ev.Kind {
	case midi.NoteOn:
		n, err := alloc.NoteOn(ev)
		if err != nil {
			return -1, err
		}
		samples := p.synth.Render(ev.Note, ev.Velocity, p.table.For(n.Channel), p.format.MixerWords)
		p.sink.Play(n.Channel, n.Voice, samples)
		return n.Voice, nil

	case midi.NoteOff:
		n, err := alloc.NoteOff(ev)
		if err != nil {
			return -1, err
		}
		p.sink.Stop(n.Channel, n.Voice)
		return n.Voice, nil
	}
	return -1, nil
}
