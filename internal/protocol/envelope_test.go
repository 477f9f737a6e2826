package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEnvelopeEncodeKeepsAllFields(t *testing.T) {
	env := Envelope{Key: "k", Token: "t", Psub: false, Data: "payload"}
	raw, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, name := range []string{"key", "token", "psub", "data"} {
		if _, ok := fields[name]; !ok {
			t.Fatalf("field %q missing from wire form %s", name, raw)
		}
	}
}

func TestEnvelopeEncodeRequiresKey(t *testing.T) {
	_, err := Envelope{Data: "x"}.Encode()
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestDecodeEnvelopeRoundTrip(t *testing.T) {
	raw := []byte(`{"key":"k","token":"t","psub":true,"data":"d"}`)
	env, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Key != "k" || env.Token != "t" || !env.Psub || env.Data != "d" {
		t.Fatalf("decoded: %+v", env)
	}
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := DecodeEnvelope([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMergeItemWinsOverDefaults(t *testing.T) {
	defaults := Envelope{Key: "session-key", Token: "session-token", Psub: true}

	merged := Merge(defaults, Envelope{Key: "item-key", Token: "item-token", Data: "d"})
	if merged.Key != "item-key" || merged.Token != "item-token" {
		t.Fatalf("item fields should win: %+v", merged)
	}
	if !merged.Psub {
		t.Fatal("session psub should carry when item psub unset")
	}

	merged = Merge(defaults, Envelope{Data: "d"})
	if merged.Key != "session-key" || merged.Token != "session-token" {
		t.Fatalf("defaults should fill blanks: %+v", merged)
	}
}
