package protocol

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TheusHen/VisualCrypt/vcrypt/identity"
)

const exchangeDomain = "visualcrypt/kx/1"

var (
	ErrExchangeRecipientMismatch = errors.New("protocol: key exchange recipient id does not match identity key")
	ErrExchangeBadSignature      = errors.New("protocol: key exchange invalid signature")
	ErrExchangeMissingKey        = errors.New("protocol: key exchange missing key")
	ErrExchangeKeyIDMismatch     = errors.New("protocol: key exchange dynamic key id mismatch")
)

// KeyExchange announces a fresh dynamic EC public key, signed by the sender's identity.
type KeyExchange struct {
	RecipientID        string `json:"recipient_id"`
	IdentityKey        []byte `json:"identity_key"`
	DynamicPublicKey   []byte `json:"dynamic_public_key"`
	DynamicPublicKeyID string `json:"dynamic_public_key_id"`
	PrivateKeyHint     string `json:"private_key_hint,omitempty"`
	TimestampSec       int64  `json:"timestamp_sec"`
	Nonce              []byte `json:"nonce"`
	Signature          []byte `json:"signature"`
}

// PublicKeyID is the short identifier of a dynamic public key.
func PublicKeyID(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return hex.EncodeToString(sum[:8])
}

// NewKeyExchange announces dynamicPublicKey for kp with a fresh nonce and the
// current time. The result still has to be signed.
func NewKeyExchange(kp identity.KeyPair, dynamicPublicKey []byte, privateKeyHint string) (KeyExchange, error) {
	if len(dynamicPublicKey) == 0 {
		return KeyExchange{}, ErrExchangeMissingKey
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return KeyExchange{}, err
	}
	return KeyExchange{
		RecipientID:        kp.RecipientID().String(),
		IdentityKey:        append([]byte(nil), kp.PublicKey...),
		DynamicPublicKey:   append([]byte(nil), dynamicPublicKey...),
		DynamicPublicKeyID: PublicKeyID(dynamicPublicKey),
		PrivateKeyHint:     privateKeyHint,
		TimestampSec:       time.Now().Unix(),
		Nonce:              nonce,
	}, nil
}

// SigningBytes is the domain-separated, length-prefixed form covered by the signature.
func (kx KeyExchange) SigningBytes() ([]byte, error) {
	id, err := identity.ParseRecipientID(kx.RecipientID)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteString(exchangeDomain)
	b.Write(id[:])
	writeField(&b, kx.IdentityKey)
	writeField(&b, kx.DynamicPublicKey)
	writeField(&b, []byte(kx.DynamicPublicKeyID))
	writeField(&b, []byte(kx.PrivateKeyHint))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(kx.TimestampSec))
	b.Write(ts[:])
	writeField(&b, kx.Nonce)
	return b.Bytes(), nil
}

// writeField length-prefixes field. The 32-bit prefix covers any field that
// fits in an envelope.
func writeField(b *bytes.Buffer, field []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(field)))
	b.Write(l[:])
	b.Write(field)
}

// Sign signs the exchange with the identity key pair.
func (kx *KeyExchange) Sign(kp identity.KeyPair) error {
	toSign, err := kx.SigningBytes()
	if err != nil {
		return err
	}
	kx.Signature = kp.Sign(toSign)
	return nil
}

// Verify checks that the identity key matches the recipient id, the dynamic key
// matches its id and the signature is valid.
func (kx KeyExchange) Verify() error {
	if len(kx.IdentityKey) == 0 || len(kx.DynamicPublicKey) == 0 {
		return ErrExchangeMissingKey
	}
	claimed, err := identity.ParseRecipientID(kx.RecipientID)
	if err != nil {
		return err
	}
	if identity.RecipientIDFromPublicKey(kx.IdentityKey) != claimed {
		return ErrExchangeRecipientMismatch
	}
	if PublicKeyID(kx.DynamicPublicKey) != kx.DynamicPublicKeyID {
		return ErrExchangeKeyIDMismatch
	}
	toVerify, err := kx.SigningBytes()
	if err != nil {
		return err
	}
	if !identity.Verify(kx.IdentityKey, toVerify, kx.Signature) {
		return ErrExchangeBadSignature
	}
	return nil
}

// EncodeKeyExchange serializes kx for an envelope payload.
func EncodeKeyExchange(kx KeyExchange) ([]byte, error) {
	return json.Marshal(kx)
}

// DecodeKeyExchange parses a payload produced by EncodeKeyExchange. It does not verify it.
func DecodeKeyExchange(b []byte) (KeyExchange, error) {
	var kx KeyExchange
	if err := json.Unmarshal(b, &kx); err != nil {
		return KeyExchange{}, fmt.Errorf("%w: key exchange: %v", ErrFraming, err)
	}
	if kx.RecipientID == "" {
		return KeyExchange{}, fmt.Errorf("%w: key exchange missing recipient_id", ErrFraming)
	}
	return kx, nil
}
