package ratchet

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/TheusHen/VisualCrypt/vcrypt/crypto"
	"github.com/TheusHen/VisualCrypt/vcrypt/identity"
)

const (
	clientToServerInfo = "visualcrypt/ratchet/c2s/1"
	serverToClientInfo = "visualcrypt/ratchet/s2c/1"

	generationSize = 8

	flagLZ4   = 0x01
	knownFlag = flagLZ4
)

var ErrWeakSecret = errors.New("ratchet: shared secret must be at least 32 bytes")

// KeyStore tracks use of the dynamic secret an Authenticated strategy was
// seeded from. IncrementUseCount must fail once the secret was invalidated or
// replaced by a newer exchange; session.Repository implements it.
type KeyStore interface {
	IncrementUseCount(recipient identity.RecipientID, dynamicPublicKeyID string) (uint64, error)
}

// AuthenticatedOptions configures an Authenticated strategy.
type AuthenticatedOptions struct {
	// RecipientID identifies the peer; it is reported as Request.UserID.
	RecipientID identity.RecipientID
	// SharedSecret is the dynamic shared secret of the key exchange.
	SharedSecret []byte
	// DynamicPublicKeyID names the exchange SharedSecret came from.
	DynamicPublicKeyID string

	// Store, when set, is charged one use per sealed or opened message.
	Store KeyStore
	// Service defaults to crypto.New(nil, crypto.Options{}).
	Service *crypto.Service
	// Compress LZ4-compresses cleartext when that makes it smaller.
	Compress bool
	// RoundsExponent is the per-message key stretching. Message keys are
	// already uniformly random, so the default is a single round.
	RoundsExponent crypto.RoundsExponent
	// MaxSkip defaults to DefaultMaxSkip.
	MaxSkip int
}

// Authenticated seals every message as a CipherV2 container under a key from
// a per-direction chain ratchet. Payload layout:
//
//	8 bytes: generation (big endian)
//	N bytes: binary CipherV2 of flags(1) || data
type Authenticated struct {
	svc       *crypto.Service
	store     KeyStore
	recipient identity.RecipientID
	keyID     string
	compress  bool
	exp       crypto.RoundsExponent

	clientSend *Chain
	serverSend *Chain
	clientRecv *Receiver // messages from the server
	serverRecv *Receiver // messages from the client
}

// NewAuthenticated derives the per-direction chains from opts.SharedSecret.
func NewAuthenticated(opts AuthenticatedOptions) (*Authenticated, error) {
	if len(opts.SharedSecret) < 32 {
		return nil, ErrWeakSecret
	}
	if opts.RoundsExponent > crypto.MaxRoundsExponent {
		return nil, fmt.Errorf("%w: rounds exponent %d", crypto.ErrInvalidArgument, opts.RoundsExponent)
	}
	svc := opts.Service
	if svc == nil {
		svc = crypto.New(nil, crypto.Options{})
	}

	c2s, err := directionKey(opts.SharedSecret, clientToServerInfo)
	if err != nil {
		return nil, err
	}
	s2c, err := directionKey(opts.SharedSecret, serverToClientInfo)
	if err != nil {
		return nil, err
	}

	a := &Authenticated{
		svc:       svc,
		store:     opts.Store,
		recipient: opts.RecipientID,
		keyID:     opts.DynamicPublicKeyID,
		compress:  opts.Compress,
		exp:       opts.RoundsExponent,
	}
	if a.clientSend, err = NewChain(c2s); err != nil {
		return nil, err
	}
	if a.serverSend, err = NewChain(s2c); err != nil {
		return nil, err
	}
	if a.clientRecv, err = NewReceiver(s2c, opts.MaxSkip); err != nil {
		return nil, err
	}
	if a.serverRecv, err = NewReceiver(c2s, opts.MaxSkip); err != nil {
		return nil, err
	}
	return a, nil
}

func directionKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("ratchet: derive %s key: %w", info, err)
	}
	return key, nil
}

// RecipientID returns the peer this strategy authenticates.
func (a *Authenticated) RecipientID() identity.RecipientID { return a.recipient }

// Seal encrypts cleartext under the next message key of role's sending chain.
func (a *Authenticated) Seal(ctx context.Context, role Role, cleartext []byte) ([]byte, error) {
	if err := a.use(); err != nil {
		return nil, err
	}

	body := make([]byte, 1, 1+len(cleartext))
	data := cleartext
	if a.compress {
		if c, ok := compress(cleartext); ok {
			body[0] |= flagLZ4
			data = c
		}
	}
	body = append(body, data...)

	chain := a.clientSend
	if role == RoleServer {
		chain = a.serverSend
	}
	km, gen, err := chain.Next()
	if err != nil {
		return nil, err
	}
	c, err := a.svc.BinaryEncrypt(ctx, crypto.Clearbytes{Bytes: body}, km, a.exp, nil)
	if err != nil {
		return nil, err
	}

	container := a.svc.BinaryEncodeVisualCrypt(c)
	out := make([]byte, generationSize, generationSize+len(container))
	binary.BigEndian.PutUint64(out, gen)
	return append(out, container...), nil
}

// Open authenticates and decrypts a payload sent by role's peer. The receiving
// chain only advances when the message authenticates.
func (a *Authenticated) Open(ctx context.Context, role Role, payload []byte) (Request, error) {
	if len(payload) < generationSize {
		return Request{}, crypto.ErrInvalidKeyOrData
	}
	gen := binary.BigEndian.Uint64(payload[:generationSize])
	c, err := a.svc.BinaryDecodeVisualCrypt(payload[generationSize:])
	if err != nil {
		return Request{}, crypto.ErrInvalidKeyOrData
	}
	// Both sides agree on the exponent, so any other value is forged and is
	// refused before paying for key stretching.
	if c.RoundsExponent != a.exp {
		return Request{}, crypto.ErrInvalidKeyOrData
	}
	if err := a.use(); err != nil {
		return Request{}, err
	}

	recv := a.serverRecv
	if role == RoleClient {
		recv = a.clientRecv
	}
	var body []byte
	err = recv.Open(gen, func(km crypto.KeyMaterial64) error {
		out, err := a.svc.BinaryDecrypt(ctx, c, km, nil)
		if err != nil {
			return err
		}
		if len(out.Bytes) == 0 || out.Bytes[0]&^knownFlag != 0 {
			return crypto.ErrInvalidKeyOrData
		}
		body = out.Bytes
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	data := body[1:]
	if body[0]&flagLZ4 != 0 {
		if data, err = decompress(data); err != nil {
			return Request{}, err
		}
	}
	return Request{
		CommandData:     data,
		IsAuthenticated: true,
		UserID:          a.recipient.String(),
	}, nil
}

func (a *Authenticated) use() error {
	if a.store == nil {
		return nil
	}
	_, err := a.store.IncrementUseCount(a.recipient, a.keyID)
	return err
}
