// Package crypto implements the VisualCrypt service: password normalization and
// hashing, authenticated symmetric encryption into a CipherV2 container, the
// VisualCrypt text armor, EC key pairs with hashed Diffie-Hellman shared
// secrets, and random-number diagnostics.
//
// Every operation is composed from the primitives of a platform.Platform, so the
// service can run against a deterministic fake in tests.
//
// # CipherV2
//
// Encrypt splits a KeyMaterial64 into an encryption half and a MAC half. The
// encryption half is stretched with 2^RoundsExponent AES-256 rounds seeded by a
// random IV; the MAC key is SHA-256(macHalf || stretchedKey). The cleartext is
// padded to the AES block size with random bytes, encrypted with AES-256-CBC and
// authenticated with HMAC-SHA256 over the header, IV and ciphertext.
//
// Decrypt reports every authentication or structure failure as
// ErrInvalidKeyOrData, so a caller cannot tell a wrong key from corrupted data.
//
// # Armor
//
// EncodeVisualCrypt renders the binary container as "VisualCrypt/" followed by
// standard base64 wrapped at 64 columns. Whitespace is ignored when decoding.
package crypto
