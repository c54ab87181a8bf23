// Package session agrees dynamic secrets between two identities and runs an
// authenticated ratchet over the resulting byte stream.
//
// Handshake works over any io.ReadWriter: a QUIC stream, a TCP connection or
// a net.Pipe in tests. Each side announces a fresh EC public key in a signed
// key exchange carried by a passthrough envelope, derives the shared secret
// and records it in a Repository keyed by the peer's recipient id.
package session
