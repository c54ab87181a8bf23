package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const ecSeedInfo = "visualcrypt/ec-seed/1"

// Curve selects the EC group used for key pairs.
type Curve uint8

const (
	CurveX25519 Curve = iota + 1
	CurveSecp256k1
)

func (c Curve) String() string {
	switch c {
	case CurveX25519:
		return "x25519"
	case CurveSecp256k1:
		return "secp256k1"
	default:
		return fmt.Sprintf("curve(%d)", uint8(c))
	}
}

// ParseCurve maps a curve name to a Curve.
func ParseCurve(name string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "x25519", "curve25519":
		return CurveX25519, nil
	case "secp256k1":
		return CurveSecp256k1, nil
	default:
		return 0, fmt.Errorf("%w: unknown curve %q", ErrInvalidArgument, name)
	}
}

// ECKeyPair is a private scalar and its public key.
// X25519 public keys are 32 bytes; secp256k1 public keys are 33-byte compressed points.
type ECKeyPair struct {
	Curve      Curve
	PrivateKey []byte
	PublicKey  []byte
}

// GenerateECKeyPair creates a key pair on the service's curve. With a nil seed
// the private key comes from the platform's secure random source. A seed makes
// generation deterministic and must only be used in tests or for mnemonic recovery.
func (s *Service) GenerateECKeyPair(seed []byte) (ECKeyPair, error) {
	return s.GenerateECKeyPairOn(s.curve, seed)
}

func (s *Service) GenerateECKeyPairOn(curve Curve, seed []byte) (ECKeyPair, error) {
	scalar, err := s.privateScalar(seed)
	if err != nil {
		return ECKeyPair{}, err
	}

	switch curve {
	case CurveX25519:
		pub, err := curve25519.X25519(scalar, curve25519.Basepoint)
		if err != nil {
			return ECKeyPair{}, fmt.Errorf("x25519 basepoint mul: %w", err)
		}
		return ECKeyPair{Curve: curve, PrivateKey: scalar, PublicKey: pub}, nil
	case CurveSecp256k1:
		priv := secp256k1.PrivKeyFromBytes(scalar)
		if priv.Key.IsZero() {
			return ECKeyPair{}, fmt.Errorf("%w: secp256k1 scalar reduces to zero", ErrInvalidArgument)
		}
		return ECKeyPair{
			Curve:      curve,
			PrivateKey: priv.Serialize(),
			PublicKey:  priv.PubKey().SerializeCompressed(),
		}, nil
	default:
		return ECKeyPair{}, fmt.Errorf("%w: %s", ErrInvalidArgument, curve)
	}
}

func (s *Service) privateScalar(seed []byte) ([]byte, error) {
	if seed == nil {
		return s.p.RandomBytes(32)
	}
	if len(seed) == 0 {
		return nil, fmt.Errorf("%w: empty key seed", ErrInvalidArgument)
	}
	rd := hkdf.New(sha256.New, seed, nil, []byte(ecSeedInfo))
	scalar := make([]byte, 32)
	if _, err := io.ReadFull(rd, scalar); err != nil {
		return nil, err
	}
	return scalar, nil
}

// CalculateAndHashSharedSecret performs ECDH between privateKey and publicKey
// and returns SHA-512 of the raw shared value. The curve is inferred from the
// public key: 32 bytes is X25519, 33 or 65 bytes is secp256k1.
func (s *Service) CalculateAndHashSharedSecret(privateKey, publicKey []byte) ([]byte, error) {
	if len(privateKey) != 32 {
		return nil, fmt.Errorf("%w: private key must be 32 bytes, got %d", ErrInvalidArgument, len(privateKey))
	}

	var shared []byte
	switch len(publicKey) {
	case curve25519.PointSize:
		var err error
		shared, err = curve25519.X25519(privateKey, publicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: x25519: %v", ErrInvalidArgument, err)
		}
	case secp256k1.PubKeyBytesLenCompressed, secp256k1.PubKeyBytesLenUncompressed:
		pub, err := secp256k1.ParsePubKey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: secp256k1: %v", ErrInvalidArgument, err)
		}
		priv := secp256k1.PrivKeyFromBytes(privateKey)
		shared = secp256k1.GenerateSharedSecret(priv, pub)
	default:
		return nil, fmt.Errorf("%w: unsupported public key length %d", ErrInvalidArgument, len(publicKey))
	}
	return s.p.SHA512(shared)
}

// SeedFromMnemonic validates a BIP-39 mnemonic and returns its 64-byte seed,
// suitable for GenerateECKeyPair.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("%w: not a valid BIP-39 mnemonic", ErrInvalidArgument)
	}
	return bip39.NewSeed(mnemonic, passphrase), nil
}
