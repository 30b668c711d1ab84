package protocol

import (
	"bytes"
	"testing"
)

func TestPipelineDeliversFramesInOrder(t *testing.T) {
	f1, _ := Encode(true, OpcodeText, []byte("one"), true)
	f2, _ := Encode(true, OpcodeText, []byte("two"), true)
	f3, _ := Encode(true, OpcodeText, []byte("three"), true)

	p := NewPipeline(RoleServer, 0)
	if err := p.Deliver(append(append(append([]byte{}, f1...), f2...), f3...)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if p.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", p.Pending())
	}

	for _, want := range []string{"one", "two", "three"} {
		frame := p.Next()
		if frame == nil {
			t.Fatalf("Next() returned nil, expected payload %q", want)
		}
		if string(frame.Payload) != want {
			t.Errorf("Next() payload = %q, want %q", frame.Payload, want)
		}
	}
	if p.Next() != nil {
		t.Error("Next() after draining should return nil")
	}
}

func TestPipelineHandlesPartialDelivery(t *testing.T) {
	full, _ := Encode(true, OpcodeBinary, bytes.Repeat([]byte{'x'}, 300), true)
	p := NewPipeline(RoleServer, 0)

	split := len(full) / 2
	if err := p.Deliver(full[:split]); err != nil {
		t.Fatalf("Deliver (partial): %v", err)
	}
	if p.Pending() != 0 {
		t.Fatalf("Pending() after partial delivery = %d, want 0", p.Pending())
	}

	if err := p.Deliver(full[split:]); err != nil {
		t.Fatalf("Deliver (remainder): %v", err)
	}
	if p.Pending() != 1 {
		t.Fatalf("Pending() after full delivery = %d, want 1", p.Pending())
	}
	frame := p.Next()
	if len(frame.Payload) != 300 {
		t.Errorf("Payload length = %d, want 300", len(frame.Payload))
	}
}

func TestPipelineDeliverAcrossManyFragments(t *testing.T) {
	full, _ := Encode(true, OpcodeText, []byte("reassembled byte by byte"), true)
	p := NewPipeline(RoleServer, 0)

	for i := 0; i < len(full); i++ {
		if err := p.Deliver(full[i : i+1]); err != nil {
			t.Fatalf("Deliver(byte %d): %v", i, err)
		}
	}
	if p.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", p.Pending())
	}
	frame := p.Next()
	if string(frame.Payload) != "reassembled byte by byte" {
		t.Errorf("Payload = %q", frame.Payload)
	}
}
