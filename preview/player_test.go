package preview

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"

	"soundchip/chip"
	"soundchip/debug"
	"soundchip/midi"
	"soundchip/synth"
	"soundchip/voice"
)

func init() {
	debug.SetWarnOutput(nil)
}

type fakeSink struct {
	clock   *fakeClock
	cost    time.Duration // charged to the clock on every Play
	playing map[[2]int]bool
	calls   []string
}

func newFakeSink(clock *fakeClock) *fakeSink {
	return &fakeSink{clock: clock, playing: make(map[[2]int]bool)}
}

func (s *fakeSink) Play(channel, voice int, samples []int16) {
	s.playing[[2]int{channel, voice}] = true
	s.calls = append(s.calls, fmt.Sprintf("play %d/%d", channel, voice))
	if s.clock != nil {
		s.clock.now = s.clock.now.Add(s.cost)
	}
}

func (s *fakeSink) Stop(channel, voice int) {
	delete(s.playing, [2]int{channel, voice})
	s.calls = append(s.calls, fmt.Sprintf("stop %d/%d", channel, voice))
}

func (s *fakeSink) Busy(channel, voice int) bool {
	return s.playing[[2]int{channel, voice}]
}

type offlineSink struct {
	*fakeSink
	advanced []time.Duration
}

func (s *offlineSink) Advance(d time.Duration) {
	s.advanced = append(s.advanced, d)
}

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func on(note, channel uint8, gap time.Duration) midi.Event {
	return midi.Event{Kind: midi.NoteOn, Note: note, Channel: channel, Velocity: 7, Gap: gap}
}

func off(note, channel uint8, gap time.Duration) midi.Event {
	return midi.Event{Kind: midi.NoteOff, Note: note, Channel: channel, Gap: gap}
}

func newTestPlayer(sink Sink, clock *fakeClock) *Player {
	format := chip.Format{Channels: 2, Voices: 2, MixerWords: 1}
	s := synth.New(synth.Options{SampleRate: 1000, Peak: 100, Length: 10 * time.Millisecond}, nil)
	p := NewPlayer(format, chip.DefaultTable(2), s, sink)
	p.Now = clock.Now
	p.Sleep = clock.Sleep
	return p
}

func TestRunPlaysAndSleeps(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	sink := newFakeSink(clock)
	p := newTestPlayer(sink, clock)

	var updates []Update
	p.Observe(ObserverFunc(func(u Update) { updates = append(updates, u) }))

	events := []midi.Event{
		on(60, 0, 100*time.Millisecond),
		on(64, 0, 0),
		off(60, 0, 50*time.Millisecond),
		off(64, 0, 0),
	}
	if err := p.Run(context.Background(), events); err != nil {
		t.Fatal(err)
	}

	wantCalls := []string{"play 0/0", "play 0/1", "stop 0/0", "stop 0/1"}
	if fmt.Sprint(sink.calls) != fmt.Sprint(wantCalls) {
		t.Errorf("calls = %v, want %v", sink.calls, wantCalls)
	}
	if fmt.Sprint(clock.slept) != fmt.Sprint([]time.Duration{100 * time.Millisecond, 50 * time.Millisecond}) {
		t.Errorf("slept = %v", clock.slept)
	}

	if len(updates) != 5 {
		t.Fatalf("got %d updates, want 4 events + done", len(updates))
	}
	if updates[1].Voice != 1 || updates[2].Voice != 0 {
		t.Errorf("update voices = %d, %d", updates[1].Voice, updates[2].Voice)
	}
	last := updates[4]
	if !last.Done || last.Err != nil || last.Elapsed != 150*time.Millisecond {
		t.Errorf("final update = %+v", last)
	}
}

func TestRunSubtractsHandlingTime(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	sink := newFakeSink(clock)
	sink.cost = 40 * time.Millisecond
	p := newTestPlayer(sink, clock)

	events := []midi.Event{on(60, 0, 100*time.Millisecond), on(62, 0, 30*time.Millisecond), off(60, 0, 0), off(62, 0, 0)}
	if err := p.Run(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	// the second note costs more than its gap: no sleep at all
	if len(clock.slept) != 1 || clock.slept[0] != 60*time.Millisecond {
		t.Errorf("slept = %v, want [60ms]", clock.slept)
	}
}

func TestRunOfflineAdvances(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	sink := &offlineSink{fakeSink: newFakeSink(nil)}
	p := newTestPlayer(sink, clock)

	events := []midi.Event{on(60, 1, time.Second), off(60, 1, 250*time.Millisecond)}
	if err := p.Run(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	if len(clock.slept) != 0 {
		t.Errorf("offline run slept %v", clock.slept)
	}
	if fmt.Sprint(sink.advanced) != fmt.Sprint([]time.Duration{time.Second, 250 * time.Millisecond}) {
		t.Errorf("advanced = %v", sink.advanced)
	}
}

func TestRunCancelStopsHeldVoices(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	sink := newFakeSink(clock)
	p := newTestPlayer(sink, clock)

	ctx, cancel := context.WithCancel(context.Background())
	var final Update
	p.Observe(ObserverFunc(func(u Update) {
		if u.Index == 0 && !u.Done {
			cancel()
		}
		if u.Done {
			final = u
		}
	}))

	err := p.Run(ctx, []midi.Event{on(60, 0, 0), on(61, 0, 0), off(60, 0, 0)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(sink.playing) != 0 {
		t.Errorf("voices left playing: %v", sink.playing)
	}
	if !final.Done || !errors.Is(final.Err, context.Canceled) {
		t.Errorf("final update = %+v", final)
	}
}

func TestRunUsesSinkAsPool(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	sink := newFakeSink(clock)
	sink.playing[[2]int{1, 0}] = true // still ringing from elsewhere
	p := newTestPlayer(sink, clock)

	if err := p.Run(context.Background(), []midi.Event{on(60, 1, 0)}); err != nil {
		t.Fatal(err)
	}
	if sink.calls[0] != "play 1/1" {
		t.Errorf("calls = %v, want the first idle slot", sink.calls)
	}
}

func TestRunUnmatchedNoteOff(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	p := newTestPlayer(newFakeSink(clock), clock)
	err := p.Run(context.Background(), []midi.Event{off(60, 0, 0)})
	if !errors.Is(err, voice.ErrUnmatchedNoteOff) {
		t.Errorf("err = %v, want ErrUnmatchedNoteOff", err)
	}
}
