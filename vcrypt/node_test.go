package vcrypt

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/TheusHen/VisualCrypt/vcrypt/identity"
	"github.com/TheusHen/VisualCrypt/vcrypt/session"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	n, err := NewNode(NodeOptions{Identity: kp, Logger: zaptest.NewLogger(t), Compress: true})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	return n
}

func TestNodeDialAccept(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	server := newTestNode(t)
	client := newTestNode(t)
	if err := server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer server.Close()
	if server.ListenAddr() == "" {
		t.Fatalf("expected listener addr")
	}

	type result struct {
		data string
		user string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		conn, err := server.Accept(ctx)
		if err != nil {
			resCh <- result{err: err}
			return
		}
		defer conn.Close()
		req, err := conn.Receive(ctx)
		if err != nil {
			resCh <- result{err: err}
			return
		}
		if err := conn.Send(ctx, []byte("pong")); err != nil {
			resCh <- result{err: err}
			return
		}
		resCh <- result{data: string(req.CommandData), user: req.UserID}
		// Keep the connection open until the client has read the reply.
		_, _ = conn.Receive(ctx)
	}()

	conn, err := client.Dial(ctx, server.ListenAddr(), server.RecipientID())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := conn.Send(ctx, []byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	reply, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(reply.CommandData) != "pong" || reply.UserID != server.RecipientID().String() {
		t.Fatalf("unexpected reply %+v", reply)
	}

	res := <-resCh
	if res.err != nil {
		t.Fatalf("server: %v", res.err)
	}
	if res.data != "ping" || res.user != client.RecipientID().String() {
		t.Fatalf("server saw %+v", res)
	}
	if _, err := client.Repository().Get(server.RecipientID()); err != nil {
		t.Fatalf("client repository missing the server secret: %v", err)
	}
}

func TestNodeAcceptWithoutListen(t *testing.T) {
	n := newTestNode(t)
	if _, err := n.Accept(context.Background()); !errors.Is(err, ErrNotListening) {
		t.Fatalf("expected ErrNotListening, got %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewNodeRequiresIdentity(t *testing.T) {
	if _, err := NewNode(NodeOptions{}); !errors.Is(err, session.ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
}
