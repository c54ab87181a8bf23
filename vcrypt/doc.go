// Package vcrypt ties the VisualCrypt building blocks into a network node.
//
// The envelope codec and stream assembler live in protocol, the CipherV2
// engine in crypto, the request ratchets in ratchet and the key exchange in
// session. A Node carries sessions over QUIC: each connection opens one
// control stream, runs the signed key exchange on it and then exchanges
// ratcheted envelopes.
package vcrypt
