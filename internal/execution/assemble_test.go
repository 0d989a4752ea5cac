package execution

import (
	"bytes"
	"math/big"
	"testing"

	clierr "github.com/ggonzalez94/swapx/internal/errors"
)

func TestAppendSignatureLengthPrefix(t *testing.T) {
	callData := []byte{0x1f, 0xff, 0x99, 0x1f, 0xaa}
	sig := bytes.Repeat([]byte{0x42}, 65)

	out, err := AppendSignature(callData, sig)
	if err != nil {
		t.Fatalf("AppendSignature failed: %v", err)
	}
	if len(out) != len(callData)+32+65 {
		t.Fatalf("assembled length = %d, want %d", len(out), len(callData)+32+65)
	}
	if !bytes.Equal(out[:len(callData)], callData) {
		t.Fatal("original calldata not preserved")
	}
	prefix := out[len(callData) : len(callData)+32]
	if got := new(big.Int).SetBytes(prefix); got.Int64() != 65 {
		t.Fatalf("length prefix decodes to %d, want 65", got.Int64())
	}
	// Prefix must be exactly the 32-byte big-endian encoding of 65.
	for _, b := range prefix[:31] {
		if b != 0 {
			t.Fatal("length prefix not left-padded with zeros")
		}
	}
	if prefix[31] != 65 {
		t.Fatalf("final prefix byte = %d, want 65", prefix[31])
	}
	if !bytes.Equal(out[len(callData)+32:], sig) {
		t.Fatal("signature bytes not appended")
	}
}

func TestAppendSignatureMissingPieces(t *testing.T) {
	_, err := AppendSignature(nil, bytes.Repeat([]byte{1}, 65))
	typed, ok := clierr.As(err)
	if !ok || typed.Code != clierr.CodeAssembly {
		t.Fatalf("expected assembly error for missing calldata, got %v", err)
	}

	_, err = AppendSignature([]byte{0x01}, nil)
	typed, ok = clierr.As(err)
	if !ok || typed.Code != clierr.CodeAssembly {
		t.Fatalf("expected assembly error for missing signature, got %v", err)
	}
}

func TestDecodeHex(t *testing.T) {
	buf, err := DecodeHex("0x1fff991f")
	if err != nil {
		t.Fatalf("DecodeHex failed: %v", err)
	}
	if !bytes.Equal(buf, []byte{0x1f, 0xff, 0x99, 0x1f}) {
		t.Fatalf("unexpected bytes %x", buf)
	}
	if empty, err := DecodeHex(""); err != nil || len(empty) != 0 {
		t.Fatalf("empty input: %x %v", empty, err)
	}
	if _, err := DecodeHex("0xzz"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}
