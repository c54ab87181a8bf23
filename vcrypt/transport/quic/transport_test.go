package quic

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestDialListenStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := Listen("127.0.0.1:0", Options{})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	errCh := make(chan error, 1)
	go func() {
		conn, err := ln.Accept(ctx)
		if err != nil {
			errCh <- err
			return
		}
		st, err := AcceptStream(ctx, conn)
		if err != nil {
			errCh <- err
			return
		}
		buf := make([]byte, 5)
		if _, err := io.ReadFull(st, buf); err != nil {
			errCh <- err
			return
		}
		_, err = st.Write(buf)
		errCh <- err
	}()

	conn, err := Dial(ctx, ln.Addr().String(), Options{KeepAlivePeriod: time.Second})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseWithError(0, "")

	if proto := conn.ConnectionState().TLS.NegotiatedProtocol; proto != ALPN {
		t.Fatalf("negotiated %q, want %q", proto, ALPN)
	}
	st, err := OpenStream(ctx, conn)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if _, err := st.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	echo := make([]byte, 5)
	if _, err := io.ReadFull(st, echo); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(echo) != "hello" {
		t.Fatalf("echo = %q", echo)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("server: %v", err)
	}
}
