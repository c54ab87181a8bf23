package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/TheusHen/VisualCrypt/vcrypt/crypto"
	"github.com/TheusHen/VisualCrypt/vcrypt/identity"
	"github.com/TheusHen/VisualCrypt/vcrypt/protocol"
	"github.com/TheusHen/VisualCrypt/vcrypt/ratchet"
)

var (
	ErrMissingIdentity    = errors.New("session: handshake requires an identity")
	ErrUnexpectedPeer     = errors.New("session: peer is not the expected recipient")
	ErrReflectedExchange  = errors.New("session: peer presented our own identity")
	ErrCurveMismatch      = errors.New("session: peer dynamic key is on a different curve")
	ErrStaleExchange      = errors.New("session: key exchange timestamp outside allowed skew")
	ErrUnauthenticatedKey = errors.New("session: key exchange must be sent without authentication")
)

// DefaultMaxClockSkew bounds the difference between a key exchange timestamp
// and the local clock.
const DefaultMaxClockSkew = 5 * time.Minute

type HandshakeOptions struct {
	// Identity signs the local key exchange. Required.
	Identity identity.KeyPair
	// Service derives dynamic keys; defaults to crypto.New(nil, crypto.Options{}).
	Service *crypto.Service
	// Repository receives the agreed secret; a private one is created when nil.
	Repository *Repository
	Logger     *zap.Logger

	// ExpectedPeer, when non-zero, pins the remote recipient id.
	ExpectedPeer identity.RecipientID
	// PrivateKeyHint is stored with the secret and announced to the peer.
	PrivateKeyHint string
	// Compress enables LZ4 compression of session payloads.
	Compress bool
	// MaxClockSkew defaults to DefaultMaxClockSkew.
	MaxClockSkew time.Duration
	// ScratchSize is the read buffer of the session's assembler.
	ScratchSize int
}

// Handshake runs the key exchange on rw. The client sends its exchange first;
// the server answers after verifying it. On success the agreed secret is in
// the repository and the returned Session owns rw.
func Handshake(ctx context.Context, rw io.ReadWriter, role ratchet.Role, opts HandshakeOptions) (*Session, error) {
	if len(opts.Identity.PrivateKey) == 0 {
		return nil, ErrMissingIdentity
	}
	svc := opts.Service
	if svc == nil {
		svc = crypto.New(nil, crypto.Options{})
	}
	repo := opts.Repository
	if repo == nil {
		repo = NewRepository()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	skew := opts.MaxClockSkew
	if skew <= 0 {
		skew = DefaultMaxClockSkew
	}

	dynamic, err := svc.GenerateECKeyPair(nil)
	if err != nil {
		return nil, err
	}
	local, err := protocol.NewKeyExchange(opts.Identity, dynamic.PublicKey, opts.PrivateKeyHint)
	if err != nil {
		return nil, err
	}
	if err := local.Sign(opts.Identity); err != nil {
		return nil, err
	}

	plain := ratchet.NewClient(nil)
	if role == ratchet.RoleServer {
		plain = ratchet.NewServer(nil)
	}
	asm := protocol.NewAssembler(rw, opts.ScratchSize)

	var remote protocol.KeyExchange
	if role == ratchet.RoleClient {
		if err := sendExchange(ctx, rw, plain, local); err != nil {
			return nil, err
		}
		if remote, err = receiveExchange(ctx, asm, plain); err != nil {
			return nil, err
		}
	} else {
		if remote, err = receiveExchange(ctx, asm, plain); err != nil {
			return nil, err
		}
	}

	peer, err := checkExchange(remote, opts, skew)
	if err != nil {
		logger.Warn("key exchange rejected", zap.String("role", role.String()), zap.Error(err))
		return nil, err
	}
	if len(remote.DynamicPublicKey) != len(dynamic.PublicKey) {
		return nil, ErrCurveMismatch
	}
	if role == ratchet.RoleServer {
		if err := sendExchange(ctx, rw, plain, local); err != nil {
			return nil, err
		}
	}

	shared, err := svc.CalculateAndHashSharedSecret(dynamic.PrivateKey, remote.DynamicPublicKey)
	if err != nil {
		return nil, err
	}
	repo.Put(peer, DynamicSecret{
		DynamicSharedSecret: shared,
		DynamicPublicKey:    dynamic.PublicKey,
		DynamicPublicKeyID:  local.DynamicPublicKeyID,
		PrivateKeyHint:      opts.PrivateKeyHint,
	})

	sec, err := ratchet.NewAuthenticated(ratchet.AuthenticatedOptions{
		RecipientID:        peer,
		SharedSecret:       shared,
		DynamicPublicKeyID: local.DynamicPublicKeyID,
		Store:              repo,
		Service:            svc,
		Compress:           opts.Compress,
	})
	if err != nil {
		repo.invalidateExchange(peer, local.DynamicPublicKeyID)
		return nil, err
	}
	r := ratchet.NewClient(sec)
	if role == ratchet.RoleServer {
		r = ratchet.NewServer(sec)
	}

	logger.Info("key exchange complete",
		zap.String("role", role.String()),
		zap.String("peer", peer.String()),
		zap.String("dynamic_key_id", local.DynamicPublicKeyID),
		zap.String("peer_dynamic_key_id", remote.DynamicPublicKeyID),
		zap.String("curve", dynamic.Curve.String()),
	)

	return &Session{
		rw:      rw,
		asm:     asm,
		ratchet: r,
		repo:    repo,
		local:   opts.Identity.RecipientID(),
		remote:  peer,
		keyID:   local.DynamicPublicKeyID,
		logger:  logger,
	}, nil
}

func sendExchange(ctx context.Context, w io.Writer, plain *ratchet.Ratchet, kx protocol.KeyExchange) error {
	payload, err := protocol.EncodeKeyExchange(kx)
	if err != nil {
		return err
	}
	env, err := plain.EncryptRequest(ctx, payload)
	if err != nil {
		return err
	}
	return protocol.WriteEnvelope(w, env)
}

func receiveExchange(ctx context.Context, asm *protocol.Assembler, plain *ratchet.Ratchet) (protocol.KeyExchange, error) {
	env, err := asm.Next(ctx)
	if err != nil {
		return protocol.KeyExchange{}, err
	}
	req, err := plain.DecryptRequest(ctx, env)
	if err != nil {
		return protocol.KeyExchange{}, err
	}
	if req.IsAuthenticated {
		return protocol.KeyExchange{}, ErrUnauthenticatedKey
	}
	return protocol.DecodeKeyExchange(req.CommandData)
}

// checkExchange verifies the peer's exchange and returns its recipient id.
func checkExchange(kx protocol.KeyExchange, opts HandshakeOptions, skew time.Duration) (identity.RecipientID, error) {
	if err := kx.Verify(); err != nil {
		return identity.RecipientID{}, err
	}
	peer, err := identity.ParseRecipientID(kx.RecipientID)
	if err != nil {
		return identity.RecipientID{}, err
	}
	if peer == opts.Identity.RecipientID() {
		return identity.RecipientID{}, ErrReflectedExchange
	}
	if opts.ExpectedPeer != (identity.RecipientID{}) && peer != opts.ExpectedPeer {
		return identity.RecipientID{}, fmt.Errorf("%w: got %s", ErrUnexpectedPeer, peer)
	}
	if d := time.Since(time.Unix(kx.TimestampSec, 0)); d > skew || d < -skew {
		return identity.RecipientID{}, fmt.Errorf("%w: %s", ErrStaleExchange, d.Round(time.Second))
	}
	return peer, nil
}
