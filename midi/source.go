package midi

import (
	"io"
	"time"
)

// MessageKind classifies a raw message from a MIDI source
type MessageKind int

const (
	MessageOther MessageKind = iota
	MessageNoteOn
	MessageNoteOff
	MessageEndOfTrack
)

// Message is one record from a MIDI source. Delta is the time since the
// previous message. Velocity is in the 0..127 MIDI domain.
type Message struct {
	Kind     MessageKind
	Note     uint8
	Channel  uint8
	Velocity uint8
	Delta    time.Duration
}

// Source yields messages in order. io.EOF ends the stream the same way an
// end-of-track message with zero delta would.
type Source interface {
	Next() (Message, error)
}

// Stream is a Source over an in-memory message list
type Stream struct {
	msgs []Message
	pos  int
}

// NewStream wraps msgs as a Source
func NewStream(msgs ...Message) *Stream {
	return &Stream{msgs: msgs}
}

func (s *Stream) Next() (Message, error) {
	if s.pos >= len(s.msgs) {
		return Message{}, io.EOF
	}
	m := s.msgs[s.pos]
	s.pos++
	return m, nil
}

// Len returns the total number of messages
func (s *Stream) Len() int {
	return len(s.msgs)
}
