package crypto

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/TheusHen/VisualCrypt/vcrypt/platform"
)

const hmacBlockSize = 64

// Encrypt encrypts text as UTF-8.
func (s *Service) Encrypt(ctx context.Context, cleartext Cleartext, km KeyMaterial64, exp RoundsExponent, progress Progress) (CipherV2, error) {
	return s.encrypt(ctx, []byte(cleartext.Text), km, exp, progress)
}

// Decrypt reverses Encrypt.
func (s *Service) Decrypt(ctx context.Context, c CipherV2, km KeyMaterial64, progress Progress) (Cleartext, error) {
	b, err := s.decrypt(ctx, c, km, progress)
	if err != nil {
		return Cleartext{}, err
	}
	return Cleartext{Text: string(b)}, nil
}

// BinaryEncrypt encrypts raw bytes.
func (s *Service) BinaryEncrypt(ctx context.Context, clear Clearbytes, km KeyMaterial64, exp RoundsExponent, progress Progress) (CipherV2, error) {
	return s.encrypt(ctx, clear.Bytes, km, exp, progress)
}

// BinaryDecrypt reverses BinaryEncrypt.
func (s *Service) BinaryDecrypt(ctx context.Context, c CipherV2, km KeyMaterial64, progress Progress) (Clearbytes, error) {
	b, err := s.decrypt(ctx, c, km, progress)
	if err != nil {
		return Clearbytes{}, err
	}
	return Clearbytes{Bytes: b}, nil
}

// DefaultEncrypt encrypts data with DefaultRoundsExponent and returns the
// binary container.
func (s *Service) DefaultEncrypt(ctx context.Context, data []byte, km KeyMaterial64, progress Progress) ([]byte, error) {
	c, err := s.encrypt(ctx, data, km, DefaultRoundsExponent, progress)
	if err != nil {
		return nil, err
	}
	return s.BinaryEncodeVisualCrypt(c), nil
}

// DefaultDecrypt reverses DefaultEncrypt. A container that cannot be parsed is
// reported as ErrInvalidKeyOrData.
func (s *Service) DefaultDecrypt(ctx context.Context, data []byte, km KeyMaterial64, progress Progress) ([]byte, error) {
	c, err := s.BinaryDecodeVisualCrypt(data)
	if err != nil {
		return nil, ErrInvalidKeyOrData
	}
	return s.decrypt(ctx, c, km, progress)
}

func (s *Service) encrypt(ctx context.Context, plain []byte, km KeyMaterial64, exp RoundsExponent, progress Progress) (CipherV2, error) {
	if exp > MaxRoundsExponent {
		return CipherV2{}, fmt.Errorf("%w: rounds exponent %d exceeds %d", ErrInvalidArgument, exp, MaxRoundsExponent)
	}

	iv, err := s.p.RandomBytes(IVSize)
	if err != nil {
		return CipherV2{}, err
	}
	padding := BlockSize - len(plain)%BlockSize
	filler, err := s.p.RandomBytes(padding)
	if err != nil {
		return CipherV2{}, err
	}
	padded := make([]byte, 0, len(plain)+padding)
	padded = append(padded, plain...)
	padded = append(padded, filler...)

	c := CipherV2{RoundsExponent: exp, Padding: uint8(padding)}
	copy(c.IV[:], iv)

	encKey, macKey, err := s.deriveKeys(ctx, km, c.IV[:], exp, progress)
	if err != nil {
		return CipherV2{}, err
	}
	c.Message, err = s.p.AESCBC(platform.Encrypt, c.IV[:], padded, encKey)
	if err != nil {
		return CipherV2{}, err
	}
	mac, err := s.authenticate(macKey, c)
	if err != nil {
		return CipherV2{}, err
	}
	copy(c.MAC[:], mac)
	progress.report(100, "Encryption complete")
	return c, nil
}

func (s *Service) decrypt(ctx context.Context, c CipherV2, km KeyMaterial64, progress Progress) ([]byte, error) {
	if !c.wellFormed() {
		return nil, ErrInvalidKeyOrData
	}

	encKey, macKey, err := s.deriveKeys(ctx, km, c.IV[:], c.RoundsExponent, progress)
	if err != nil {
		return nil, err
	}
	expected, err := s.authenticate(macKey, c)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(expected, c.MAC[:]) != 1 {
		return nil, ErrInvalidKeyOrData
	}

	padded, err := s.p.AESCBC(platform.Decrypt, c.IV[:], c.Message, encKey)
	if err != nil {
		return nil, ErrInvalidKeyOrData
	}
	progress.report(100, "Decryption complete")
	return padded[:len(padded)-int(c.Padding)], nil
}

func (c CipherV2) wellFormed() bool {
	return c.RoundsExponent <= MaxRoundsExponent &&
		len(c.Message) >= BlockSize &&
		len(c.Message)%BlockSize == 0 &&
		c.Padding >= 1 && c.Padding <= BlockSize
}

// cancelCheckInterval bounds how many stretching rounds run between context checks.
const cancelCheckInterval = 4096

// deriveKeys stretches the encryption half with 2^exp AES rounds and derives
// the MAC key from the result. km itself is never modified.
func (s *Service) deriveKeys(ctx context.Context, km KeyMaterial64, iv []byte, exp RoundsExponent, progress Progress) ([]byte, []byte, error) {
	rounds := exp.Rounds()
	step := rounds / 100
	if step == 0 {
		step = 1
	}

	key := km.encryptionHalf()
	for i := uint64(0); i < rounds; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrCancelled, err)
			}
		}
		if i%step == 0 {
			progress.report(int(i*100/rounds), "Stretching key")
		}
		next, err := s.p.AESCBC(platform.Encrypt, iv, key, key)
		if err != nil {
			return nil, nil, err
		}
		key = next
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	macKey, err := s.p.SHA256(append(km.macHalf(), key...))
	if err != nil {
		return nil, nil, err
	}
	return key, macKey, nil
}

// authenticate computes HMAC-SHA256 over everything in c except the MAC.
func (s *Service) authenticate(macKey []byte, c CipherV2) ([]byte, error) {
	msg := make([]byte, 0, 3+IVSize+len(c.Message))
	msg = append(msg, CipherV2Version, byte(c.RoundsExponent), c.Padding)
	msg = append(msg, c.IV[:]...)
	msg = append(msg, c.Message...)
	return s.hmacSHA256(macKey, msg)
}

func (s *Service) hmacSHA256(key, msg []byte) ([]byte, error) {
	if len(key) > hmacBlockSize {
		sum, err := s.p.SHA256(key)
		if err != nil {
			return nil, err
		}
		key = sum
	}
	ipad := make([]byte, hmacBlockSize, hmacBlockSize+len(msg))
	opad := make([]byte, hmacBlockSize, hmacBlockSize+32)
	copy(ipad, key)
	copy(opad, key)
	for i := range ipad {
		ipad[i] ^= 0x36
		opad[i] ^= 0x5c
	}
	inner, err := s.p.SHA256(append(ipad, msg...))
	if err != nil {
		return nil, err
	}
	return s.p.SHA256(append(opad, inner...))
}
