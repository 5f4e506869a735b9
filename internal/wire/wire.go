// Package wire defines the frames workers send to the aggregator: a small
// envelope around a snapshot diff, its codecs, and the control sentinels.
package wire

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/vk/ensembleeval/internal/snapshot"
)

// Type tells the aggregator how to apply a message.
type Type string

const (
	// TypePartial carries a RealizationDiff to merge.
	TypePartial Type = "partial"
	// TypeFull carries a whole Realization to install.
	TypeFull Type = "full"
)

// Control frames. They are sent as plain text, outside any envelope.
var (
	// Stop ends a stream. The receiver acknowledges it and closes.
	Stop = []byte("stop")
	// Ack is returned by the receiver for every frame it has taken.
	Ack = []byte("ack")
)

// ErrInvalidMessage is wrapped by every envelope validation failure.
var ErrInvalidMessage = errors.New("invalid message")

// Message is the envelope of one state report.
type Message struct {
	Type    Type                      `json:"type"`
	Iter    int                       `json:"iter"`
	Iens    string                    `json:"iens"`
	Partial *snapshot.RealizationDiff `json:"partial,omitempty"`
	Full    *snapshot.Realization     `json:"full,omitempty"`
}

// PartialMessage wraps a diff for realization iens of iteration iter.
func PartialMessage(iter, iens int, diff *snapshot.RealizationDiff) Message {
	return Message{Type: TypePartial, Iter: iter, Iens: strconv.Itoa(iens), Partial: diff}
}

// FullMessage wraps the whole state of realization iens of iteration iter.
func FullMessage(iter, iens int, full *snapshot.Realization) Message {
	return Message{Type: TypeFull, Iter: iter, Iens: strconv.Itoa(iens), Full: full}
}

// Validate checks that the envelope is complete and consistent with its type.
func (m Message) Validate() error {
	if m.Iter < 0 {
		return fmt.Errorf("%w: negative iter %d", ErrInvalidMessage, m.Iter)
	}
	if _, err := m.RealizationIndex(); err != nil {
		return err
	}
	switch m.Type {
	case TypePartial:
		if m.Partial == nil {
			return fmt.Errorf("%w: partial message without diff", ErrInvalidMessage)
		}
	case TypeFull:
		if m.Full == nil {
			return fmt.Errorf("%w: full message without realization", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
	return nil
}

// RealizationIndex parses the iens field.
func (m Message) RealizationIndex() (int, error) {
	iens, err := strconv.Atoi(m.Iens)
	if err != nil || iens < 0 {
		return 0, fmt.Errorf("%w: bad iens %q", ErrInvalidMessage, m.Iens)
	}
	return iens, nil
}

// IsStop reports whether a frame is the stop sentinel.
func IsStop(frame []byte) bool {
	return string(frame) == string(Stop)
}

// IsAck reports whether a frame is an acknowledgement.
func IsAck(frame []byte) bool {
	return string(frame) == string(Ack)
}
