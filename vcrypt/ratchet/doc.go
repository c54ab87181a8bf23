// Package ratchet pairs cleartext command payloads with envelopes for one side
// of a connection.
//
// A Ratchet delegates the payload transformation to a Security strategy:
//
//   - Passthrough frames and unframes only. It adds no confidentiality and no
//     authentication, every request it yields is anonymous, and it must not be
//     mistaken for a secure transport. Callers that need protection encrypt the
//     command data themselves with the crypto package.
//   - Authenticated runs a symmetric chain ratchet per direction, seeded from a
//     dynamic shared secret agreed during a key exchange. Every message is a
//     CipherV2 container under a fresh message key, so compromise of the current
//     chain key does not reveal earlier messages.
package ratchet
