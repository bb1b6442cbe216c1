package midi

import (
	"io"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestLiveSourceDeltas(t *testing.T) {
	ls := newLiveSource("test")
	ls.handle(gomidi.NoteOn(2, 60, 100), 250)
	ls.handle(gomidi.ControlChange(2, 7, 100), 300)
	ls.handle(gomidi.NoteOff(2, 60), 1250)
	ls.Close()

	// late messages after Close are ignored
	ls.handle(gomidi.NoteOn(2, 62, 100), 1300)

	events, err := Normalize(ls, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %v", events)
	}
	if events[0].Kind != NoteOn || events[0].Channel != 2 || events[0].Gap != time.Second {
		t.Errorf("first = %+v", events[0])
	}
	if events[1].Kind != NoteOff || events[1].Gap != 0 {
		t.Errorf("second = %+v", events[1])
	}
}

func TestLiveSourceBlocksUntilClose(t *testing.T) {
	ls := newLiveSource("test")
	got := make(chan error, 1)
	go func() {
		_, err := ls.Next()
		got <- err
	}()

	select {
	case <-got:
		t.Fatal("Next returned before anything arrived")
	case <-time.After(20 * time.Millisecond):
	}

	ls.Close()
	ls.Close()
	select {
	case err := <-got:
		if err != io.EOF {
			t.Errorf("err = %v, want io.EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next still blocked after Close")
	}
}

func TestLiveSourceDropsWhenFull(t *testing.T) {
	ls := newLiveSource("test")
	for i := 0; i < liveBuffer+5; i++ {
		ls.handle(gomidi.NoteOn(0, 60, 1), int32(i))
	}
	if len(ls.msgs) != liveBuffer {
		t.Errorf("buffered %d, want %d", len(ls.msgs), liveBuffer)
	}
}
