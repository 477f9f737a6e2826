package session

import (
	"errors"
	"io"
	"testing"
)

func TestItemsSourceYieldsInOrderThenEOF(t *testing.T) {
	src := Items([]Item{
		{Key: "k", Data: "a"},
		{Key: "k", Data: "b"},
	})

	first, err := src()
	if err != nil || first.Data != "a" {
		t.Fatalf("first: %+v %v", first, err)
	}
	second, err := src()
	if err != nil || second.Data != "b" {
		t.Fatalf("second: %+v %v", second, err)
	}
	if _, err := src(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	// Exhausted sources stay exhausted.
	if _, err := src(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF again, got %v", err)
	}
}

func TestValuesSourceSharesDefaults(t *testing.T) {
	src := Values([]string{"x", "y"})
	item, err := src()
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if item.Key != "" || item.Token != "" || item.Psub {
		t.Fatalf("value items must not carry key/token/psub: %+v", item)
	}
	if item.Data != "x" {
		t.Fatalf("data: got %q", item.Data)
	}
	if _, err := src(); err != nil {
		t.Fatalf("second: %v", err)
	}
	if _, err := src(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}
