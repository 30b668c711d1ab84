package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		opcode  Opcode
		payload []byte
		masked  bool
		role    Role
	}{
		{"empty text unmasked", OpcodeText, nil, false, RoleClient},
		{"short binary masked", OpcodeBinary, []byte("hello"), true, RoleServer},
		{"boundary 125 masked", OpcodeBinary, bytes.Repeat([]byte{'a'}, 125), true, RoleServer},
		{"boundary 126 masked", OpcodeBinary, bytes.Repeat([]byte{'b'}, 126), true, RoleServer},
		{"boundary 65535 masked", OpcodeBinary, bytes.Repeat([]byte{'c'}, 65535), true, RoleServer},
		{"boundary 65536 masked", OpcodeBinary, bytes.Repeat([]byte{'d'}, 65536), true, RoleServer},
		{"unmasked server-sent", OpcodeText, []byte("hi"), false, RoleClient},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			raw, err := Encode(true, c.opcode, c.payload, c.masked)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			frame, consumed, err := Decode(raw, c.role)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if frame == nil {
				t.Fatalf("Decode reported incomplete frame for a complete buffer")
			}
			if consumed != len(raw) {
				t.Errorf("consumed = %d, want %d", consumed, len(raw))
			}
			if frame.Opcode != c.opcode {
				t.Errorf("Opcode = %v, want %v", frame.Opcode, c.opcode)
			}
			if !frame.Final {
				t.Error("Final = false, want true")
			}
			if !bytes.Equal(frame.Payload, c.payload) {
				t.Errorf("Payload round-trip mismatch: got %d bytes, want %d bytes", len(frame.Payload), len(c.payload))
			}
		})
	}
}

func TestDecodeNeedsMoreBytes(t *testing.T) {
	raw, err := Encode(true, OpcodeText, []byte("hello world"), true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	for n := 0; n < len(raw); n++ {
		frame, consumed, err := Decode(raw[:n], RoleServer)
		if err != nil {
			t.Fatalf("Decode(%d bytes): unexpected error %v", n, err)
		}
		if frame != nil {
			t.Fatalf("Decode(%d bytes): got a frame from a truncated buffer", n)
		}
		if consumed != 0 {
			t.Errorf("Decode(%d bytes): consumed = %d, want 0", n, consumed)
		}
	}
}

func TestDecodeStopsAtFrameBoundary(t *testing.T) {
	first, _ := Encode(true, OpcodeText, []byte("one"), true)
	second, _ := Encode(true, OpcodeText, []byte("two"), true)
	raw := append(append([]byte{}, first...), second...)

	frame, consumed, err := Decode(raw, RoleServer)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != len(first) {
		t.Errorf("consumed = %d, want %d (first frame only)", consumed, len(first))
	}
	if string(frame.Payload) != "one" {
		t.Errorf("Payload = %q, want %q", frame.Payload, "one")
	}
}

func TestEncodeFreshMaskKeyEachCall(t *testing.T) {
	// A correct masking implementation never reuses a key across
	// calls; two encodes of identical payloads must not produce
	// identical masked bytes.
	a, err := Encode(true, OpcodeBinary, []byte("same payload"), true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := Encode(true, OpcodeBinary, []byte("same payload"), true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two masked encodes of the same payload produced identical bytes; masking key was not randomized")
	}
}

func TestDecodeRoleDeterminesMaskKeyPresence(t *testing.T) {
	// A server-sent (unmasked) frame decoded by a Client must not
	// consume a masking key: the whole frame is consumed and the
	// payload comes back as sent.
	unmasked, _ := Encode(true, OpcodeText, []byte("abc"), false)
	frame, consumed, err := Decode(unmasked, RoleClient)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != len(unmasked) {
		t.Errorf("consumed = %d, want %d", consumed, len(unmasked))
	}
	if string(frame.Payload) != "abc" {
		t.Errorf("Payload = %q, want %q", frame.Payload, "abc")
	}
}
