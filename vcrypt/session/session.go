package session

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/TheusHen/VisualCrypt/vcrypt/identity"
	"github.com/TheusHen/VisualCrypt/vcrypt/protocol"
	"github.com/TheusHen/VisualCrypt/vcrypt/ratchet"
)

// Session is an authenticated ratchet over a byte stream.
// Send and Receive may be called from different goroutines.
type Session struct {
	rw      io.ReadWriter
	asm     *protocol.Assembler
	ratchet *ratchet.Ratchet
	repo    *Repository
	local   identity.RecipientID
	remote  identity.RecipientID
	keyID   string
	logger  *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (s *Session) LocalID() identity.RecipientID { return s.local }

func (s *Session) RemoteID() identity.RecipientID { return s.remote }

func (s *Session) Role() ratchet.Role { return s.ratchet.Role() }

// DynamicPublicKeyID identifies the key exchange this session runs on.
func (s *Session) DynamicPublicKeyID() string { return s.keyID }

// Repository returns the repository holding the session's secret.
func (s *Session) Repository() *Repository { return s.repo }

// Send seals payload and writes it as one envelope.
func (s *Session) Send(ctx context.Context, payload []byte) error {
	env, err := s.ratchet.EncryptRequest(ctx, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return protocol.WriteEnvelope(s.rw, env)
}

// Receive reads the next envelope and opens it.
func (s *Session) Receive(ctx context.Context) (ratchet.Request, error) {
	env, err := s.asm.Next(ctx)
	if err != nil {
		return ratchet.Request{}, err
	}
	req, err := s.ratchet.DecryptRequest(ctx, env)
	if err != nil {
		s.logger.Debug("dropping envelope", zap.String("peer", s.remote.String()), zap.Error(err))
		return ratchet.Request{}, err
	}
	return req, nil
}

// UseCount returns how often the session's secret has been used, or 0 once
// it was invalidated or superseded.
func (s *Session) UseCount() uint64 {
	secret, err := s.repo.Get(s.remote)
	if err != nil || secret.DynamicPublicKeyID != s.keyID {
		return 0
	}
	return secret.UseCount
}

// Close invalidates the session's secret, unless a newer exchange already
// replaced it, and closes the stream when it is an io.Closer.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.repo.invalidateExchange(s.remote, s.keyID) {
			s.logger.Debug("dynamic secret invalidated", zap.String("peer", s.remote.String()))
		}
		if c, ok := s.rw.(io.Closer); ok {
			s.closeErr = c.Close()
		}
	})
	return s.closeErr
}
