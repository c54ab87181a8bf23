// Package identity holds the long-term Ed25519 identity that signs key exchanges.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrInvalidKey         = errors.New("identity: invalid Ed25519 key size")
	ErrInvalidRecipientID = errors.New("identity: invalid recipient id")
)

// RecipientID is the stable identifier a peer is addressed by: SHA-256(PublicKey).
// It keys the symmetric key repository.
type RecipientID [32]byte

// RecipientIDFromPublicKey derives the recipient id of an Ed25519 public key.
func RecipientIDFromPublicKey(publicKey []byte) RecipientID {
	return RecipientID(sha256.Sum256(publicKey))
}

// ParseRecipientID parses the hex form returned by RecipientID.String.
func ParseRecipientID(s string) (RecipientID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return RecipientID{}, fmt.Errorf("%w: %v", ErrInvalidRecipientID, err)
	}
	if len(b) != len(RecipientID{}) {
		return RecipientID{}, fmt.Errorf("%w: length %d", ErrInvalidRecipientID, len(b))
	}
	var id RecipientID
	copy(id[:], b)
	return id, nil
}

func (id RecipientID) String() string {
	return hex.EncodeToString(id[:])
}

// KeyPair is an Ed25519 signing identity.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Generate creates a new random Ed25519 identity.
func Generate() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// FromSeed derives the identity deterministically from a 32-byte seed.
func FromSeed(seed []byte) (KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return KeyPair{}, fmt.Errorf("%w: seed must be %d bytes", ErrInvalidKey, ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return KeyPair{PublicKey: priv.Public().(ed25519.PublicKey), PrivateKey: priv}, nil
}

func (kp KeyPair) RecipientID() RecipientID {
	return RecipientIDFromPublicKey(kp.PublicKey)
}

func (kp KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, message)
}

// Verify reports whether signature is valid for message under publicKey.
func Verify(publicKey []byte, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
