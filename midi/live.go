package midi

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/smf"

	"soundchip/debug"
)

const liveBuffer = 256

// LiveSource is a Source fed by a MIDI input port. Next blocks until the
// player plays something; after Close it drains what was received and
// then returns io.EOF.
type LiveSource struct {
	name     string
	stopFunc func()

	mu     sync.Mutex
	lastMs int32
	closed bool

	msgs chan Message
	done chan struct{}
}

func newLiveSource(name string) *LiveSource {
	return &LiveSource{
		name: name,
		msgs: make(chan Message, liveBuffer),
		done: make(chan struct{}),
	}
}

// OpenLiveSource listens on the first input port whose name contains name
// (case-insensitive)
func OpenLiveSource(name string) (*LiveSource, error) {
	ins, err := scanInPorts()
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(name)
	for _, port := range ins {
		if !strings.Contains(strings.ToLower(port.String()), want) {
			continue
		}
		ls := newLiveSource(port.String())
		stop, err := gomidi.ListenTo(port, func(msg gomidi.Message, timestampms int32) {
			ls.handle(msg, timestampms)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "open input %s", port.String())
		}
		ls.stopFunc = stop
		debug.Log("midi", "recording from %s", port.String())
		return ls, nil
	}
	return nil, errors.Errorf("no MIDI input port matching %q", name)
}

// ListInPorts returns the names of all MIDI input ports
func ListInPorts() ([]string, error) {
	ins, err := scanInPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ins))
	for i, p := range ins {
		names[i] = p.String()
	}
	return names, nil
}

func scanInPorts() ([]drivers.In, error) {
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()

	select {
	case ins := <-ch:
		return ins, nil
	case <-time.After(portScanTimeout):
		return nil, ErrPortTimeout
	}
}

// handle runs on the driver's goroutine. timestampms counts from when
// listening started.
func (ls *LiveSource) handle(msg gomidi.Message, timestampms int32) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.closed {
		return
	}
	delta := time.Duration(timestampms-ls.lastMs) * time.Millisecond
	if delta < 0 {
		delta = 0
	}

	m := toMessage(smf.Message(msg), delta)
	select {
	case ls.msgs <- m:
		ls.lastMs = timestampms
	default:
		// keep lastMs so the next message still carries the lost time
		debug.LogEvery(16, "midi", "live buffer full, dropped %v", m.Kind)
	}
}

// Name returns the port name
func (ls *LiveSource) Name() string {
	return ls.name
}

func (ls *LiveSource) Next() (Message, error) {
	select {
	case m := <-ls.msgs:
		return m, nil
	default:
	}

	select {
	case m := <-ls.msgs:
		return m, nil
	case <-ls.done:
	}

	select {
	case m := <-ls.msgs:
		return m, nil
	default:
		return Message{}, io.EOF
	}
}

// Close stops listening. It is safe to call more than once.
func (ls *LiveSource) Close() error {
	ls.mu.Lock()
	if ls.closed {
		ls.mu.Unlock()
		return nil
	}
	ls.closed = true
	ls.mu.Unlock()

	if ls.stopFunc != nil {
		ls.stopFunc()
	}
	close(ls.done)
	return nil
}
