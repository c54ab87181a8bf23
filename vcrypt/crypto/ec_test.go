package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func TestSharedSecretSymmetry(t *testing.T) {
	s := New(nil, Options{})
	for _, curve := range []Curve{CurveX25519, CurveSecp256k1} {
		t.Run(curve.String(), func(t *testing.T) {
			alice, err := s.GenerateECKeyPairOn(curve, nil)
			if err != nil {
				t.Fatalf("alice: %v", err)
			}
			bob, err := s.GenerateECKeyPairOn(curve, nil)
			if err != nil {
				t.Fatalf("bob: %v", err)
			}

			ab, err := s.CalculateAndHashSharedSecret(alice.PrivateKey, bob.PublicKey)
			if err != nil {
				t.Fatalf("alice->bob: %v", err)
			}
			ba, err := s.CalculateAndHashSharedSecret(bob.PrivateKey, alice.PublicKey)
			if err != nil {
				t.Fatalf("bob->alice: %v", err)
			}
			if !bytes.Equal(ab, ba) {
				t.Fatalf("shared secrets differ")
			}
			if len(ab) != SharedSecretSize {
				t.Fatalf("shared secret is %d bytes, want %d", len(ab), SharedSecretSize)
			}
			if _, err := NewKeyMaterial64(ab); err != nil {
				t.Fatalf("shared secret is not usable as key material: %v", err)
			}
		})
	}
}

func TestSecp256k1UncompressedPublicKey(t *testing.T) {
	s := New(nil, Options{Curve: CurveSecp256k1})
	alice, _ := s.GenerateECKeyPair(nil)
	bob, _ := s.GenerateECKeyPair(nil)

	pub, err := secp256k1.ParsePubKey(bob.PublicKey)
	if err != nil {
		t.Fatalf("ParsePubKey: %v", err)
	}
	compressed, err := s.CalculateAndHashSharedSecret(alice.PrivateKey, bob.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	uncompressed, err := s.CalculateAndHashSharedSecret(alice.PrivateKey, pub.SerializeUncompressed())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(compressed, uncompressed) {
		t.Fatalf("point encoding changed the shared secret")
	}
}

func TestSeededKeyGeneration(t *testing.T) {
	s := New(nil, Options{})
	a, err := s.GenerateECKeyPair([]byte("seed one"))
	if err != nil {
		t.Fatalf("GenerateECKeyPair: %v", err)
	}
	b, _ := s.GenerateECKeyPair([]byte("seed one"))
	c, _ := s.GenerateECKeyPair([]byte("seed two"))

	if !bytes.Equal(a.PublicKey, b.PublicKey) || !bytes.Equal(a.PrivateKey, b.PrivateKey) {
		t.Fatalf("same seed produced different keys")
	}
	if bytes.Equal(a.PublicKey, c.PublicKey) {
		t.Fatalf("different seeds produced the same key")
	}
	if a.Curve != CurveX25519 || len(a.PublicKey) != 32 {
		t.Fatalf("default curve should be x25519 with 32-byte keys, got %s/%d", a.Curve, len(a.PublicKey))
	}

	if _, err := s.GenerateECKeyPair([]byte{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty seed, got %v", err)
	}
}

func TestSharedSecretInvalidKeys(t *testing.T) {
	s := New(nil, Options{})
	kp, _ := s.GenerateECKeyPair(nil)

	tests := []struct {
		name string
		priv []byte
		pub  []byte
	}{
		{"short private key", kp.PrivateKey[:16], kp.PublicKey},
		{"unknown public key length", kp.PrivateKey, make([]byte, 40)},
		{"empty public key", kp.PrivateKey, nil},
		{"low order x25519 point", kp.PrivateKey, make([]byte, 32)},
		{"invalid secp256k1 point", kp.PrivateKey, append([]byte{0x05}, make([]byte, 32)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CalculateAndHashSharedSecret(tt.priv, tt.pub); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestParseCurve(t *testing.T) {
	tests := []struct {
		in      string
		want    Curve
		wantErr bool
	}{
		{"", CurveX25519, false},
		{"X25519", CurveX25519, false},
		{" secp256k1 ", CurveSecp256k1, false},
		{"p256", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCurve(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCurve(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestSeedFromMnemonic(t *testing.T) {
	const mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic: %v", err)
	}
	if len(seed) != 64 {
		t.Fatalf("seed is %d bytes", len(seed))
	}
	again, err := SeedFromMnemonic("  abandon abandon abandon abandon abandon abandon\nabandon abandon abandon abandon abandon about ", "")
	if err != nil || !bytes.Equal(seed, again) {
		t.Fatalf("whitespace in mnemonic changed the seed: %v", err)
	}
	withPass, _ := SeedFromMnemonic(mnemonic, "TREZOR")
	if bytes.Equal(seed, withPass) {
		t.Fatalf("passphrase did not change the seed")
	}

	if _, err := SeedFromMnemonic("abandon abandon abandon", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	s := New(nil, Options{})
	a, _ := s.GenerateECKeyPair(seed)
	b, _ := s.GenerateECKeyPair(again)
	if !bytes.Equal(a.PublicKey, b.PublicKey) {
		t.Fatalf("mnemonic recovery is not deterministic")
	}
}
