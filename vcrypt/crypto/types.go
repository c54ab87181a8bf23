package crypto

import (
	"bytes"
	"fmt"
)

// KeyMaterial64 is the 64-byte key produced by HashPassword or an EC exchange.
// Bytes 0..32 are the encryption half, 32..64 the MAC half.
type KeyMaterial64 [KeyMaterialSize]byte

// NewKeyMaterial64 copies b, which must be exactly 64 bytes.
func NewKeyMaterial64(b []byte) (KeyMaterial64, error) {
	var km KeyMaterial64
	if len(b) != KeyMaterialSize {
		return km, fmt.Errorf("%w: key material must be %d bytes, got %d", ErrInvalidArgument, KeyMaterialSize, len(b))
	}
	copy(km[:], b)
	return km, nil
}

func (k KeyMaterial64) encryptionHalf() []byte {
	return append([]byte(nil), k[:32]...)
}

func (k KeyMaterial64) macHalf() []byte {
	return append([]byte(nil), k[32:]...)
}

// RoundsExponent selects 2^n key stretching rounds.
type RoundsExponent uint8

func (e RoundsExponent) Rounds() uint64 { return uint64(1) << e }

// NormalizedPassword is a password after NormalizePassword.
type NormalizedPassword struct {
	Text string
}

// Cleartext is a text message; it is encrypted as UTF-8.
type Cleartext struct {
	Text string
}

// Clearbytes is a binary message.
type Clearbytes struct {
	Bytes []byte
}

// CipherV2 is the authenticated ciphertext container.
type CipherV2 struct {
	RoundsExponent RoundsExponent
	Padding        uint8
	IV             [IVSize]byte
	MAC            [MACSize]byte
	Message        []byte
}

func (c CipherV2) Equal(o CipherV2) bool {
	return c.RoundsExponent == o.RoundsExponent &&
		c.Padding == o.Padding &&
		c.IV == o.IV &&
		c.MAC == o.MAC &&
		bytes.Equal(c.Message, o.Message)
}

// Progress receives percent-complete updates from long-running operations.
// It may be nil. Cancellation is signalled through the context instead.
type Progress func(percent int, message string)

func (p Progress) report(percent int, message string) {
	if p != nil {
		p(percent, message)
	}
}
