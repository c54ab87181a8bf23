package session

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/TheusHen/VisualCrypt/vcrypt/crypto"
	"github.com/TheusHen/VisualCrypt/vcrypt/identity"
	"github.com/TheusHen/VisualCrypt/vcrypt/protocol"
	"github.com/TheusHen/VisualCrypt/vcrypt/ratchet"
)

type handshakeResult struct {
	sess *Session
	err  error
}

func mustIdentity(t *testing.T) identity.KeyPair {
	t.Helper()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return kp
}

// handshakePair runs both sides of a handshake over net.Pipe.
func handshakePair(t *testing.T, clientOpts, serverOpts HandshakeOptions) (*Session, *Session, error, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, s := net.Pipe()
	done := make(chan handshakeResult, 1)
	go func() {
		sess, err := Handshake(ctx, s, ratchet.RoleServer, serverOpts)
		if err != nil {
			s.Close()
		}
		done <- handshakeResult{sess, err}
	}()

	client, cerr := Handshake(ctx, c, ratchet.RoleClient, clientOpts)
	if cerr != nil {
		c.Close()
	}
	res := <-done
	return client, res.sess, cerr, res.err
}

func TestHandshakeAndExchange(t *testing.T) {
	clientKP, serverKP := mustIdentity(t), mustIdentity(t)
	clientRepo, serverRepo := NewRepository(), NewRepository()

	client, server, cerr, serr := handshakePair(t,
		HandshakeOptions{Identity: clientKP, Repository: clientRepo, ExpectedPeer: serverKP.RecipientID(), Logger: zaptest.NewLogger(t)},
		HandshakeOptions{Identity: serverKP, Repository: serverRepo, Compress: true, Logger: zaptest.NewLogger(t)},
	)
	if cerr != nil || serr != nil {
		t.Fatalf("handshake: client=%v server=%v", cerr, serr)
	}
	defer client.Close()
	defer server.Close()

	if client.RemoteID() != serverKP.RecipientID() || server.RemoteID() != clientKP.RecipientID() {
		t.Fatalf("peers not bound to their identities")
	}
	cs, err := clientRepo.Get(serverKP.RecipientID())
	if err != nil {
		t.Fatalf("client repository: %v", err)
	}
	ss, err := serverRepo.Get(clientKP.RecipientID())
	if err != nil {
		t.Fatalf("server repository: %v", err)
	}
	if string(cs.DynamicSharedSecret) != string(ss.DynamicSharedSecret) || len(cs.DynamicSharedSecret) != crypto.SharedSecretSize {
		t.Fatalf("sides agreed on different secrets")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sendErr := make(chan error, 1)
	go func() { sendErr <- client.Send(ctx, []byte("balance?")) }()
	req, err := server.Receive(ctx)
	if err != nil {
		t.Fatalf("server Receive: %v", err)
	}
	if err := <-sendErr; err != nil {
		t.Fatalf("client Send: %v", err)
	}
	if string(req.CommandData) != "balance?" || !req.IsAuthenticated || req.UserID != clientKP.RecipientID().String() {
		t.Fatalf("unexpected request %+v", req)
	}

	go func() { sendErr <- server.Send(ctx, []byte("42")) }()
	req, err = client.Receive(ctx)
	if err != nil {
		t.Fatalf("client Receive: %v", err)
	}
	if err := <-sendErr; err != nil {
		t.Fatalf("server Send: %v", err)
	}
	if string(req.CommandData) != "42" || req.UserID != serverKP.RecipientID().String() {
		t.Fatalf("unexpected reply %+v", req)
	}

	if client.UseCount() != 2 || server.UseCount() != 2 {
		t.Fatalf("use counts client=%d server=%d, want 2", client.UseCount(), server.UseCount())
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := clientRepo.Get(serverKP.RecipientID()); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("Close left the secret in the repository: %v", err)
	}
	if err := client.Send(ctx, []byte("after close")); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound after close, got %v", err)
	}
}

func TestHandshakeUnexpectedPeer(t *testing.T) {
	clientKP, serverKP := mustIdentity(t), mustIdentity(t)
	other := mustIdentity(t)

	_, _, cerr, _ := handshakePair(t,
		HandshakeOptions{Identity: clientKP, ExpectedPeer: other.RecipientID()},
		HandshakeOptions{Identity: serverKP},
	)
	if !errors.Is(cerr, ErrUnexpectedPeer) {
		t.Fatalf("expected ErrUnexpectedPeer, got %v", cerr)
	}
}

func TestHandshakeReflectedIdentity(t *testing.T) {
	kp := mustIdentity(t)
	_, _, _, serr := handshakePair(t,
		HandshakeOptions{Identity: kp},
		HandshakeOptions{Identity: kp},
	)
	if !errors.Is(serr, ErrReflectedExchange) {
		t.Fatalf("expected ErrReflectedExchange, got %v", serr)
	}
}

func TestHandshakeCurveMismatch(t *testing.T) {
	_, _, _, serr := handshakePair(t,
		HandshakeOptions{Identity: mustIdentity(t), Service: crypto.New(nil, crypto.Options{Curve: crypto.CurveSecp256k1})},
		HandshakeOptions{Identity: mustIdentity(t)},
	)
	if !errors.Is(serr, ErrCurveMismatch) {
		t.Fatalf("expected ErrCurveMismatch, got %v", serr)
	}
}

func TestHandshakeSecp256k1(t *testing.T) {
	svc := crypto.New(nil, crypto.Options{Curve: crypto.CurveSecp256k1})
	client, server, cerr, serr := handshakePair(t,
		HandshakeOptions{Identity: mustIdentity(t), Service: svc},
		HandshakeOptions{Identity: mustIdentity(t), Service: svc},
	)
	if cerr != nil || serr != nil {
		t.Fatalf("handshake: client=%v server=%v", cerr, serr)
	}
	client.Close()
	server.Close()
}

func TestHandshakeRejectsForgedExchange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, s := net.Pipe()
	defer c.Close()
	done := make(chan error, 1)
	go func() {
		_, err := Handshake(ctx, s, ratchet.RoleServer, HandshakeOptions{Identity: mustIdentity(t)})
		s.Close()
		done <- err
	}()

	attacker := mustIdentity(t)
	kx, err := protocol.NewKeyExchange(attacker, make([]byte, 32), "")
	if err != nil {
		t.Fatalf("NewKeyExchange: %v", err)
	}
	if err := kx.Sign(attacker); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	kx.DynamicPublicKey[0] ^= 1
	kx.DynamicPublicKeyID = protocol.PublicKeyID(kx.DynamicPublicKey)

	payload, _ := protocol.EncodeKeyExchange(kx)
	if err := protocol.WriteEnvelope(c, protocol.Encode(payload)); err != nil {
		t.Fatalf("WriteEnvelope: %v", err)
	}
	if err := <-done; !errors.Is(err, protocol.ErrExchangeBadSignature) {
		t.Fatalf("expected ErrExchangeBadSignature, got %v", err)
	}
}

func TestHandshakeRequiresIdentity(t *testing.T) {
	c, _ := net.Pipe()
	defer c.Close()
	if _, err := Handshake(context.Background(), c, ratchet.RoleClient, HandshakeOptions{}); !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
}
