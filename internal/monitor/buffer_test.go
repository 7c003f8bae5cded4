package monitor

import (
	"strings"
	"testing"
)

func TestRingBuffer_WriteAndRead(t *testing.T) {
	rb := NewRingBuffer(64)

	if _, err := rb.Write([]byte("hello ")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := rb.Write([]byte("world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if got := rb.String(); got != "hello world" {
		t.Errorf("String() = %q, want %q", got, "hello world")
	}
	if rb.Len() != 11 {
		t.Errorf("Len() = %d, want 11", rb.Len())
	}
}

func TestRingBuffer_EvictsOldestWhenFull(t *testing.T) {
	rb := NewRingBuffer(8)

	_, _ = rb.Write([]byte("abcdefgh"))
	_, _ = rb.Write([]byte("XY"))

	if got := rb.String(); got != "cdefghXY" {
		t.Errorf("String() = %q, want %q", got, "cdefghXY")
	}
	if rb.Len() != 8 {
		t.Errorf("Len() = %d, want capacity 8", rb.Len())
	}
}

func TestRingBuffer_LargeWriteKeepsTail(t *testing.T) {
	rb := NewRingBuffer(10)

	_, _ = rb.Write([]byte(strings.Repeat("x", 100) + "tail"))

	got := rb.String()
	if !strings.HasSuffix(got, "tail") {
		t.Errorf("buffer should keep the most recent bytes, got %q", got)
	}
	if len(got) != 10 {
		t.Errorf("len = %d, want 10", len(got))
	}
}

func TestRingBuffer_Reset(t *testing.T) {
	rb := NewRingBuffer(16)
	_, _ = rb.Write([]byte("some data"))

	rb.Reset()

	if rb.Len() != 0 {
		t.Errorf("Len() after reset = %d, want 0", rb.Len())
	}
	if rb.String() != "" {
		t.Errorf("String() after reset = %q, want empty", rb.String())
	}
}

func TestRingBuffer_Empty(t *testing.T) {
	rb := NewRingBuffer(16)
	if rb.Len() != 0 || rb.String() != "" {
		t.Error("fresh buffer should be empty")
	}
}
