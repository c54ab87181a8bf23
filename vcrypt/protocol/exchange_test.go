package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/TheusHen/VisualCrypt/vcrypt/identity"
)

func TestKeyExchangeSignAndVerify(t *testing.T) {
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	dynamic := bytes.Repeat([]byte{0x42}, 32)

	kx, err := NewKeyExchange(kp, dynamic, "hint-1")
	if err != nil {
		t.Fatalf("NewKeyExchange: %v", err)
	}
	if err := kx.Sign(kp); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := kx.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	encoded, err := EncodeKeyExchange(kx)
	if err != nil {
		t.Fatalf("EncodeKeyExchange: %v", err)
	}
	decoded, err := DecodeKeyExchange(encoded)
	if err != nil {
		t.Fatalf("DecodeKeyExchange: %v", err)
	}
	if err := decoded.Verify(); err != nil {
		t.Fatalf("Verify after decode: %v", err)
	}
	if decoded.DynamicPublicKeyID != PublicKeyID(dynamic) || decoded.PrivateKeyHint != "hint-1" {
		t.Fatalf("decoded fields mismatch")
	}
}

func TestKeyExchangeVerifyFailures(t *testing.T) {
	kp, _ := identity.Generate()
	other, _ := identity.Generate()

	signed := func() KeyExchange {
		kx, _ := NewKeyExchange(kp, []byte("dynamic-public-key"), "")
		_ = kx.Sign(kp)
		return kx
	}

	tampered := signed()
	tampered.Signature[0] ^= 0xff
	if err := tampered.Verify(); !errors.Is(err, ErrExchangeBadSignature) {
		t.Fatalf("expected ErrExchangeBadSignature, got %v", err)
	}

	swapped := signed()
	swapped.DynamicPublicKey = []byte("attacker-key")
	if err := swapped.Verify(); !errors.Is(err, ErrExchangeKeyIDMismatch) {
		t.Fatalf("expected ErrExchangeKeyIDMismatch, got %v", err)
	}

	wrongID := signed()
	wrongID.RecipientID = other.RecipientID().String()
	if err := wrongID.Verify(); !errors.Is(err, ErrExchangeRecipientMismatch) {
		t.Fatalf("expected ErrExchangeRecipientMismatch, got %v", err)
	}

	if _, err := NewKeyExchange(kp, nil, ""); !errors.Is(err, ErrExchangeMissingKey) {
		t.Fatalf("expected ErrExchangeMissingKey, got %v", err)
	}

	if _, err := DecodeKeyExchange([]byte("{not json")); !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestKeyExchangeLongHint(t *testing.T) {
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	dynamic := bytes.Repeat([]byte{0x17}, 32)
	hint := strings.Repeat("h", 70000)

	kx, err := NewKeyExchange(kp, dynamic, hint)
	if err != nil {
		t.Fatalf("NewKeyExchange: %v", err)
	}
	b, err := kx.SigningBytes()
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}
	off := len(exchangeDomain) + len(identity.RecipientID{}) +
		4 + len(kx.IdentityKey) + 4 + len(kx.DynamicPublicKey) + 4 + len(kx.DynamicPublicKeyID)
	if got := binary.BigEndian.Uint32(b[off:]); got != uint32(len(hint)) {
		t.Fatalf("hint length prefix = %d, want %d", got, len(hint))
	}

	if err := kx.Sign(kp); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := kx.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	kx.PrivateKeyHint = hint[:len(hint)-65536]
	if err := kx.Verify(); !errors.Is(err, ErrExchangeBadSignature) {
		t.Fatalf("expected ErrExchangeBadSignature for a shortened hint, got %v", err)
	}
}
