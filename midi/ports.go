package midi

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"soundchip/chip"
	"soundchip/debug"
)

// ErrPortTimeout means the MIDI driver did not answer in time
var ErrPortTimeout = errors.New("midi driver did not respond")

// portScanTimeout guards against drivers that hang while enumerating
// (CoreMIDI does)
const portScanTimeout = 3 * time.Second

// ListOutPorts returns the names of all MIDI output ports. A driver must be
// registered by the caller (e.g. importing drivers/rtmididrv).
func ListOutPorts() ([]string, error) {
	outs, err := scanOutPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, p := range outs {
		names[i] = p.String()
	}
	return names, nil
}

func scanOutPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case outs := <-ch:
		return outs, nil
	case <-time.After(portScanTimeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, ErrPortTimeout
	}
}

// PortMirror forwards preview note events to a MIDI output port so an
// external synth can follow along.
type PortMirror struct {
	name string
	send func(gomidi.Message) error
}

// OpenPortMirror opens the first output port whose name contains name
// (case-insensitive)
func OpenPortMirror(name string) (*PortMirror, error) {
	outs, err := scanOutPorts()
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(name)
	for _, port := range outs {
		if !strings.Contains(strings.ToLower(port.String()), want) {
			continue
		}
		send, err := gomidi.SendTo(port)
		if err != nil {
			return nil, errors.Wrapf(err, "open port %s", port.String())
		}
		debug.Log("midi", "mirroring to %s", port.String())
		return &PortMirror{name: port.String(), send: send}, nil
	}
	return nil, errors.Errorf("no MIDI output port matching %q", name)
}

// NewPortMirror wraps an existing send function (tests, custom transports)
func NewPortMirror(name string, send func(gomidi.Message) error) *PortMirror {
	return &PortMirror{name: name, send: send}
}

// Name returns the port name
func (p *PortMirror) Name() string {
	return p.name
}

// Forward sends the MIDI equivalent of ev. Channels wrap to 0..15 and the
// velocity is scaled back to 0..127.
func (p *PortMirror) Forward(ev Event) error {
	channel := ev.Channel & 0x0F
	switch ev.Kind {
	case NoteOn:
		velocity := uint8(chip.Translate(float64(ev.Velocity), 0, chip.MaxAmp, 0, 127))
		return p.send(gomidi.NoteOn(channel, ev.Note, velocity))
	case NoteOff:
		return p.send(gomidi.NoteOff(channel, ev.Note))
	}
	return nil
}
