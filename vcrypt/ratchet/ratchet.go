package ratchet

import (
	"context"
	"fmt"

	"github.com/TheusHen/VisualCrypt/vcrypt/platform"
	"github.com/TheusHen/VisualCrypt/vcrypt/protocol"
)

// AnonymousUserID is reported for requests that carry no authenticated sender.
const AnonymousUserID = "anonymous"

// ErrEmptyPacket rejects a nil or empty clear packet or envelope.
var ErrEmptyPacket = fmt.Errorf("%w: empty packet", platform.ErrInvalidArgument)

// Role is the side of the connection a Ratchet serves.
type Role uint8

const (
	RoleClient Role = iota + 1
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Peer returns the opposite role.
func (r Role) Peer() Role {
	if r == RoleClient {
		return RoleServer
	}
	return RoleClient
}

// Request is an unwrapped command payload.
type Request struct {
	CommandData     []byte
	IsAuthenticated bool
	UserID          string
}

// Security transforms payloads between the command layer and the envelope
// layer. Seal is called with the role of the sending side, Open with the role
// of the receiving side.
type Security interface {
	Seal(ctx context.Context, role Role, cleartext []byte) ([]byte, error)
	Open(ctx context.Context, role Role, payload []byte) (Request, error)
}

// Ratchet frames outgoing requests and unframes incoming ones.
type Ratchet struct {
	role Role
	sec  Security
}

// NewClient returns the client side ratchet. A nil sec selects Passthrough.
func NewClient(sec Security) *Ratchet {
	return newRatchet(RoleClient, sec)
}

// NewServer returns the server side ratchet. A nil sec selects Passthrough.
func NewServer(sec Security) *Ratchet {
	return newRatchet(RoleServer, sec)
}

func newRatchet(role Role, sec Security) *Ratchet {
	if sec == nil {
		sec = Passthrough{}
	}
	return &Ratchet{role: role, sec: sec}
}

func (r *Ratchet) Role() Role { return r.role }

// Security returns the strategy in use.
func (r *Ratchet) Security() Security { return r.sec }

// EncryptRequest wraps cleartext into an envelope.
func (r *Ratchet) EncryptRequest(ctx context.Context, cleartext []byte) (protocol.Envelope, error) {
	if len(cleartext) == 0 {
		return protocol.Envelope{}, ErrEmptyPacket
	}
	payload, err := r.sec.Seal(ctx, r.role, cleartext)
	if err != nil {
		return protocol.Envelope{}, err
	}
	if protocol.HeaderSize+len(payload) > protocol.MaxEnvelopeSize {
		return protocol.Envelope{}, fmt.Errorf("%w: payload of %d bytes exceeds envelope limit", protocol.ErrFraming, len(payload))
	}
	return protocol.Encode(payload), nil
}

// DecryptRequest verifies the envelope CRC and unwraps the payload.
func (r *Ratchet) DecryptRequest(ctx context.Context, env protocol.Envelope) (Request, error) {
	if env.Version == 0 || len(env.Payload) == 0 {
		return Request{}, ErrEmptyPacket
	}
	if err := env.VerifyCRC(); err != nil {
		return Request{}, err
	}
	return r.sec.Open(ctx, r.role, env.Payload)
}
