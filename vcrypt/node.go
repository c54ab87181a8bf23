package vcrypt

import (
	"context"
	"errors"
	"sync"

	q "github.com/quic-go/quic-go"
	"go.uber.org/zap"

	"github.com/TheusHen/VisualCrypt/vcrypt/crypto"
	"github.com/TheusHen/VisualCrypt/vcrypt/identity"
	"github.com/TheusHen/VisualCrypt/vcrypt/ratchet"
	"github.com/TheusHen/VisualCrypt/vcrypt/session"
	"github.com/TheusHen/VisualCrypt/vcrypt/transport/quic"
)

var ErrNotListening = errors.New("vcrypt: node is not listening")

// Application error codes sent when a connection is closed.
const (
	closeNormal          q.ApplicationErrorCode = 0
	closeHandshakeFailed q.ApplicationErrorCode = 1
)

type NodeOptions struct {
	Identity identity.KeyPair
	// Service defaults to crypto.New(nil, crypto.Options{}).
	Service *crypto.Service
	// Repository is shared by every session of the node; created when nil.
	Repository *session.Repository
	Logger     *zap.Logger
	Compress   bool
	Transport  quic.Options
}

// Node accepts and dials authenticated sessions over QUIC.
type Node struct {
	opts   NodeOptions
	logger *zap.Logger

	mu       sync.Mutex
	listener *quic.Listener
}

// NewNode creates a node for opts.Identity. Missing dependencies get defaults.
func NewNode(opts NodeOptions) (*Node, error) {
	if len(opts.Identity.PrivateKey) == 0 {
		return nil, session.ErrMissingIdentity
	}
	if opts.Service == nil {
		opts.Service = crypto.New(nil, crypto.Options{})
	}
	if opts.Repository == nil {
		opts.Repository = session.NewRepository()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Node{
		opts:   opts,
		logger: logger.With(zap.String("node", opts.Identity.RecipientID().String())),
	}, nil
}

func (n *Node) RecipientID() identity.RecipientID { return n.opts.Identity.RecipientID() }

func (n *Node) Repository() *session.Repository { return n.opts.Repository }

// Listen starts accepting QUIC connections on addr.
func (n *Node) Listen(addr string) error {
	ln, err := quic.Listen(addr, n.opts.Transport)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.listener = ln
	n.mu.Unlock()
	n.logger.Info("listening", zap.String("addr", ln.Addr().String()))
	return nil
}

func (n *Node) ListenAddr() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return ""
	}
	return n.listener.Addr().String()
}

func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listener == nil {
		return nil
	}
	err := n.listener.Close()
	n.listener = nil
	return err
}

// Accept waits for the next connection and runs the server side of the key exchange.
func (n *Node) Accept(ctx context.Context) (*Conn, error) {
	n.mu.Lock()
	ln := n.listener
	n.mu.Unlock()
	if ln == nil {
		return nil, ErrNotListening
	}

	qc, err := ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	st, err := quic.AcceptStream(ctx, qc)
	if err != nil {
		_ = qc.CloseWithError(closeHandshakeFailed, "no control stream")
		return nil, err
	}
	return n.handshake(ctx, qc, st, ratchet.RoleServer, identity.RecipientID{})
}

// Dial connects to addr and runs the client side of the key exchange. A
// non-zero expected pins the peer's recipient id.
func (n *Node) Dial(ctx context.Context, addr string, expected identity.RecipientID) (*Conn, error) {
	qc, err := quic.Dial(ctx, addr, n.opts.Transport)
	if err != nil {
		return nil, err
	}
	st, err := quic.OpenStream(ctx, qc)
	if err != nil {
		_ = qc.CloseWithError(closeHandshakeFailed, "open control stream")
		return nil, err
	}
	return n.handshake(ctx, qc, st, ratchet.RoleClient, expected)
}

func (n *Node) handshake(ctx context.Context, qc q.Connection, st q.Stream, role ratchet.Role, expected identity.RecipientID) (*Conn, error) {
	sess, err := session.Handshake(ctx, st, role, session.HandshakeOptions{
		Identity:     n.opts.Identity,
		Service:      n.opts.Service,
		Repository:   n.opts.Repository,
		Logger:       n.logger,
		ExpectedPeer: expected,
		Compress:     n.opts.Compress,
	})
	if err != nil {
		n.logger.Warn("handshake failed",
			zap.String("remote", qc.RemoteAddr().String()),
			zap.String("role", role.String()),
			zap.Error(err))
		_ = qc.CloseWithError(closeHandshakeFailed, "handshake failed")
		return nil, err
	}
	return &Conn{Session: sess, conn: qc}, nil
}

// Conn is a session bound to its QUIC connection.
type Conn struct {
	*session.Session
	conn q.Connection
}

func (c *Conn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Close invalidates the session's secret and closes the connection.
func (c *Conn) Close() error {
	err := c.Session.Close()
	if cerr := c.conn.CloseWithError(closeNormal, ""); err == nil {
		err = cerr
	}
	return err
}
