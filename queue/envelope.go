package queue

import (
	"encoding/json"
	"fmt"
)

// Record kinds stored on the wire.
const (
	kindItem        = "item"
	kindEndOfStream = "eos"
)

// envelope is the stored form of every record. The kind tag keeps item
// payloads and the end-of-stream marker in separate namespaces.
type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encodeItem(payload []byte) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: item payload is not valid JSON", ErrInvalidEnvelope)
	}
	return json.Marshal(envelope{Kind: kindItem, Payload: payload})
}

func encodeEndOfStream() ([]byte, error) {
	return json.Marshal(envelope{Kind: kindEndOfStream})
}

// decodeEnvelope parses a stored record. It returns the item payload, or
// eos=true for the end-of-stream marker.
func decodeEnvelope(data []byte) (payload []byte, eos bool, err error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	switch env.Kind {
	case kindEndOfStream:
		return nil, true, nil
	case kindItem:
		if len(env.Payload) == 0 {
			return nil, false, fmt.Errorf("%w: item without payload", ErrInvalidEnvelope)
		}
		return env.Payload, false, nil
	default:
		return nil, false, fmt.Errorf("%w: unknown kind %q", ErrInvalidEnvelope, env.Kind)
	}
}
