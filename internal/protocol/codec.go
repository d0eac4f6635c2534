package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrMissingType = errors.New("envelope missing type")
	ErrMissingID   = errors.New("envelope missing id")
)

// NewEnvelope builds an outbound envelope with a fresh request ID and the
// current timestamp. payload is marshaled into Data; a nil payload leaves
// Data empty.
func NewEnvelope(msgType, channel string, payload any) (Envelope, error) {
	env := Envelope{
		Type:      msgType,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Channel:   channel,
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Data = data
	}

	return env, nil
}

// Encode serializes an envelope for the wire.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses a raw transport payload into an envelope. Malformed
// payloads return an error; callers log and drop them so one bad message
// never kills the connection.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	if env.ID == "" {
		return Envelope{}, ErrMissingID
	}
	return env, nil
}

// DecodeData unmarshals the envelope's raw data into a typed payload.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s envelope has no data", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", e.Type, err)
	}
	return nil
}
