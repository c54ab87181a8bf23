package crypto

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// BinaryEncodeVisualCrypt serializes c:
//
//	1 byte: version (2)
//	1 byte: rounds exponent
//	1 byte: padding length
//	16 bytes: IV
//	32 bytes: MAC
//	N bytes: message (N >= 16, multiple of 16)
func (s *Service) BinaryEncodeVisualCrypt(c CipherV2) []byte {
	out := make([]byte, 0, CipherV2HeaderSize+len(c.Message))
	out = append(out, CipherV2Version, byte(c.RoundsExponent), c.Padding)
	out = append(out, c.IV[:]...)
	out = append(out, c.MAC[:]...)
	out = append(out, c.Message...)
	return out
}

// BinaryDecodeVisualCrypt parses the output of BinaryEncodeVisualCrypt.
func (s *Service) BinaryDecodeVisualCrypt(b []byte) (CipherV2, error) {
	if len(b) < CipherV2HeaderSize+BlockSize {
		return CipherV2{}, fmt.Errorf("%w: %d bytes is too short", ErrFormat, len(b))
	}
	if b[0] != CipherV2Version {
		return CipherV2{}, fmt.Errorf("%w: unsupported version %d", ErrFormat, b[0])
	}
	c := CipherV2{
		RoundsExponent: RoundsExponent(b[1]),
		Padding:        b[2],
		Message:        append([]byte(nil), b[CipherV2HeaderSize:]...),
	}
	copy(c.IV[:], b[3:3+IVSize])
	copy(c.MAC[:], b[3+IVSize:CipherV2HeaderSize])
	if !c.wellFormed() {
		return CipherV2{}, fmt.Errorf("%w: invalid container structure", ErrFormat)
	}
	return c, nil
}

// EncodeVisualCrypt renders c as VisualCrypt text.
func (s *Service) EncodeVisualCrypt(c CipherV2) string {
	encoded := base64.StdEncoding.EncodeToString(s.BinaryEncodeVisualCrypt(c))

	var b strings.Builder
	b.Grow(len(ArmorPrefix) + len(encoded) + len(encoded)/ArmorLineWidth + 1)
	b.WriteString(ArmorPrefix)
	for len(encoded) > ArmorLineWidth {
		b.WriteString(encoded[:ArmorLineWidth])
		b.WriteByte('\n')
		encoded = encoded[ArmorLineWidth:]
	}
	b.WriteString(encoded)
	return b.String()
}

// DecodeVisualCrypt parses VisualCrypt text. Whitespace anywhere after the
// prefix is ignored.
func (s *Service) DecodeVisualCrypt(ctx context.Context, text string, progress Progress) (CipherV2, error) {
	if err := ctx.Err(); err != nil {
		return CipherV2{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	progress.report(0, "Decoding VisualCrypt text")

	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, ArmorPrefix) {
		return CipherV2{}, fmt.Errorf("%w: missing %q prefix", ErrFormat, ArmorPrefix)
	}
	body := strings.Join(strings.Fields(text[len(ArmorPrefix):]), "")
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return CipherV2{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	c, err := s.BinaryDecodeVisualCrypt(raw)
	if err != nil {
		return CipherV2{}, err
	}
	progress.report(100, "VisualCrypt text decoded")
	return c, nil
}
