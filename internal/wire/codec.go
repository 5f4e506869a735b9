package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns messages into frames and back.
type Codec interface {
	// Name is the value used to select the codec in configuration.
	Name() string
	// Binary reports whether frames go out as binary rather than text.
	Binary() bool
	Encode(Message) ([]byte, error)
	Decode([]byte) (Message, error)
}

// JSON encodes messages as JSON text frames.
type JSON struct{}

func (JSON) Name() string { return "json" }
func (JSON) Binary() bool { return false }

func (JSON) Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func (JSON) Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decoding json frame: %w", err)
	}
	return m, nil
}

// Msgpack encodes messages as msgpack binary frames. Field names follow the
// json tags, so both codecs share one schema.
type Msgpack struct{}

func (Msgpack) Name() string { return "msgpack" }
func (Msgpack) Binary() bool { return true }

func (Msgpack) Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding msgpack frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (Msgpack) Decode(data []byte) (Message, error) {
	var m Message
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&m); err != nil {
		return Message{}, fmt.Errorf("decoding msgpack frame: %w", err)
	}
	return m, nil
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// DecodeFrame decodes a frame using the codec matching its kind.
func DecodeFrame(binary bool, data []byte) (Message, error) {
	if binary {
		return Msgpack{}.Decode(data)
	}
	return JSON{}.Decode(data)
}
