// Package audio provides preview sinks: a real-time sound device and an
// offline WAV renderer.
package audio

import (
	"io"
	"sync"

	"github.com/hajimehoshi/oto/v2"
	"github.com/pkg/errors"

	"soundchip/debug"
)

type slot struct {
	channel, voice int
}

// DeviceSink plays every voice on its own oto player, looping the buffer
// until the voice is stopped.
type DeviceSink struct {
	ctx     *oto.Context
	mu      sync.Mutex
	players map[slot]oto.Player
}

// OpenDevice opens the default output device as mono 16-bit at sampleRate
// and waits until it is ready.
func OpenDevice(sampleRate int) (*DeviceSink, error) {
	ctx, ready, err := oto.NewContext(sampleRate, 1, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, errors.Wrap(err, "open audio device")
	}
	<-ready
	debug.Log("audio", "device open at %dHz", sampleRate)
	return &DeviceSink{ctx: ctx, players: make(map[slot]oto.Player)}, nil
}

// Play replaces whatever the slot was playing
func (d *DeviceSink) Play(channel, voice int, samples []int16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := slot{channel, voice}
	if p, ok := d.players[key]; ok {
		p.Close()
	}
	if len(samples) == 0 {
		delete(d.players, key)
		return
	}
	p := d.ctx.NewPlayer(newLoopReader(samples))
	p.Play()
	d.players[key] = p
}

// Stop silences a slot
func (d *DeviceSink) Stop(channel, voice int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := slot{channel, voice}
	if p, ok := d.players[key]; ok {
		p.Pause()
		if err := p.Close(); err != nil {
			debug.Log("audio", "close player %d/%d: %v", channel, voice, err)
		}
		delete(d.players, key)
	}
}

// Busy reports whether the slot's player is still running
func (d *DeviceSink) Busy(channel, voice int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.players[slot{channel, voice}]
	return ok && p.IsPlaying()
}

// Close stops every player
func (d *DeviceSink) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, p := range d.players {
		p.Close()
		delete(d.players, key)
	}
	return nil
}

// loopReader serves a sample buffer as little-endian bytes forever
type loopReader struct {
	data []byte
	pos  int
}

func newLoopReader(samples []int16) *loopReader {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(uint16(s) >> 8)
	}
	return &loopReader{data: data}
}

func (r *loopReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		c := copy(p[n:], r.data[r.pos:])
		n += c
		r.pos = (r.pos + c) % len(r.data)
	}
	return n, nil
}
