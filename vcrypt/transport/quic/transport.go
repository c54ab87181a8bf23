// Package quic provides the QUIC byte-stream transport nodes run sessions on.
package quic

import (
	"context"
	"net"
	"time"

	q "github.com/quic-go/quic-go"
)

// Options tunes the QUIC connection. Zero values keep quic-go's defaults.
type Options struct {
	MaxIdleTimeout  time.Duration
	KeepAlivePeriod time.Duration
}

func (o Options) config() *q.Config {
	return &q.Config{
		MaxIdleTimeout:  o.MaxIdleTimeout,
		KeepAlivePeriod: o.KeepAlivePeriod,
	}
}

type Listener struct {
	inner *q.Listener
}

// Listen opens a QUIC listener on addr with a fresh self-signed certificate.
func Listen(addr string, opts Options) (*Listener, error) {
	tlsConf, err := newTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := q.ListenAddr(addr, tlsConf, opts.config())
	if err != nil {
		return nil, err
	}
	return &Listener{inner: ln}, nil
}

func (l *Listener) Accept(ctx context.Context) (q.Connection, error) {
	return l.inner.Accept(ctx)
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) Close() error { return l.inner.Close() }

// Dial opens a QUIC connection to addr.
func Dial(ctx context.Context, addr string, opts Options) (q.Connection, error) {
	tlsConf, err := newTLSConfig()
	if err != nil {
		return nil, err
	}
	return q.DialAddr(ctx, addr, tlsConf, opts.config())
}

// OpenStream opens the control stream on the dialing side.
func OpenStream(ctx context.Context, conn q.Connection) (q.Stream, error) {
	return conn.OpenStreamSync(ctx)
}

// AcceptStream accepts the control stream on the listening side. The stream
// only becomes visible once the dialer has written to it.
func AcceptStream(ctx context.Context, conn q.Connection) (q.Stream, error) {
	return conn.AcceptStream(ctx)
}
