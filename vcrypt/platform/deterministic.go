package platform

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// Deterministic is a Platform whose random bytes come from a seeded SHA-256
// counter stream. Hashing and AES behave exactly like Native.
// It is meant for tests only.
type Deterministic struct {
	mu      sync.Mutex
	seed    []byte
	counter uint64
	buf     []byte
}

func NewDeterministic(seed []byte) *Deterministic {
	return &Deterministic{seed: append([]byte(nil), seed...)}
}

func (d *Deterministic) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.buf) < len(p) {
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], d.counter)
		d.counter++
		h := sha256.New()
		h.Write(d.seed)
		h.Write(ctr[:])
		d.buf = h.Sum(d.buf)
	}
	n := copy(p, d.buf)
	d.buf = d.buf[n:]
	return n, nil
}

func (d *Deterministic) RandomBytes(count int) ([]byte, error) {
	return randomBytes(d, count)
}

func (d *Deterministic) SHA256(data []byte) ([]byte, error) { return sum256(data) }

func (d *Deterministic) SHA512(data []byte) ([]byte, error) { return sum512(data) }

func (d *Deterministic) AESCBC(dir Direction, iv, input, key []byte) ([]byte, error) {
	return aesCBC(dir, iv, input, key)
}
