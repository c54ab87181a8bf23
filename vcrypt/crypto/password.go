package crypto

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePassword canonicalizes a password: Unicode NFC, surrounding
// whitespace trimmed and every inner whitespace run collapsed to one space.
// Case is preserved.
func (s *Service) NormalizePassword(raw string) NormalizedPassword {
	return NormalizedPassword{Text: strings.Join(strings.Fields(norm.NFC.String(raw)), " ")}
}

// HashPassword derives KeyMaterial64 as SHA-512 of the UTF-8 password. The
// result depends on the normalized password only.
func (s *Service) HashPassword(pw NormalizedPassword) (KeyMaterial64, error) {
	if pw.Text == "" {
		return KeyMaterial64{}, fmt.Errorf("%w: empty password", ErrInvalidArgument)
	}
	sum, err := s.p.SHA512([]byte(pw.Text))
	if err != nil {
		return KeyMaterial64{}, err
	}
	return NewKeyMaterial64(sum)
}
