package platform

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
)

const (
	// BlockSize is the AES block size; AESCBC input must be a multiple of it.
	BlockSize = aes.BlockSize
	// KeySize is the AES-256 key size.
	KeySize = 32
)

var (
	ErrInvalidArgument      = errors.New("platform: invalid argument")
	ErrUnsupportedOperation = errors.New("platform: unsupported operation")
)

// Direction selects the AES block operation.
type Direction int

const (
	Encrypt Direction = 1
	Decrypt Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Encrypt:
		return "encrypt"
	case Decrypt:
		return "decrypt"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Platform is the primitive capability set. Implementations must be safe for
// concurrent use and must not keep state between calls beyond their random source.
type Platform interface {
	RandomBytes(n int) ([]byte, error)
	SHA256(data []byte) ([]byte, error)
	SHA512(data []byte) ([]byte, error)
	// AESCBC runs AES-256 in CBC mode without padding. iv is 16 bytes, key 32
	// bytes and input a multiple of 16 bytes.
	AESCBC(dir Direction, iv, input, key []byte) ([]byte, error)
}

// Native implements Platform on the Go standard library.
type Native struct {
	rand io.Reader
}

func NewNative() *Native {
	return &Native{rand: rand.Reader}
}

// NewNativeWithReader uses r as the random source, e.g. a hardware RNG.
func NewNativeWithReader(r io.Reader) *Native {
	return &Native{rand: r}
}

func (n *Native) RandomBytes(count int) ([]byte, error) {
	return randomBytes(n.rand, count)
}

func (n *Native) SHA256(data []byte) ([]byte, error) { return sum256(data) }

func (n *Native) SHA512(data []byte) ([]byte, error) { return sum512(data) }

func (n *Native) AESCBC(dir Direction, iv, input, key []byte) ([]byte, error) {
	return aesCBC(dir, iv, input, key)
}

func randomBytes(r io.Reader, count int) ([]byte, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: random length %d", ErrInvalidArgument, count)
	}
	out := make([]byte, count)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func sum256(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil sha256 input", ErrInvalidArgument)
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

func sum512(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: nil sha512 input", ErrInvalidArgument)
	}
	sum := sha512.Sum512(data)
	return sum[:], nil
}

func aesCBC(dir Direction, iv, input, key []byte) ([]byte, error) {
	if iv == nil || input == nil || key == nil {
		return nil, fmt.Errorf("%w: nil aes argument", ErrInvalidArgument)
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrInvalidArgument, BlockSize, len(iv))
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidArgument, KeySize, len(key))
	}
	if len(input)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: input length %d is not block aligned", ErrInvalidArgument, len(input))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(input))
	switch dir {
	case Encrypt:
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, input)
	case Decrypt:
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, input)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, dir)
	}
	return out, nil
}
