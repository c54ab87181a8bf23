// Package platform provides the primitive capability set the crypto service is
// composed from: secure random bytes, SHA-256/512 and a raw AES-256-CBC block
// operation without padding.
//
// It is the only layer that touches a concrete crypto implementation. Native
// uses the Go standard library; Deterministic replaces the random source with a
// seeded stream for reproducible tests.
package platform
