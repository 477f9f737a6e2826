package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Ack is the fixed frame a subscriber answers each delivery with when
// receipt confirmation is enabled.
const Ack = "ok"

var ErrMissingKey = errors.New("protocol: envelope missing key")

// Envelope is the per-item frame sent on a persistent rep connection. All
// fields are always present on the wire; data is opaque to the client.
type Envelope struct {
	Key   string `json:"key"`
	Token string `json:"token"`
	Psub  bool   `json:"psub"`
	Data  string `json:"data"`
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.Key) == "" {
		return ErrMissingKey
	}
	return nil
}

func (e Envelope) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode envelope: %w", err)
	}
	return payload, nil
}

func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Merge resolves one wire envelope from session-level defaults and a
// per-item envelope. Item fields win over session defaults.
func Merge(defaults, item Envelope) Envelope {
	out := item
	if out.Key == "" {
		out.Key = defaults.Key
	}
	if out.Token == "" {
		out.Token = defaults.Token
	}
	out.Psub = out.Psub || defaults.Psub
	return out
}
