package ratchet

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"sync"

	"github.com/TheusHen/VisualCrypt/vcrypt/crypto"
)

var (
	ErrRatchetExhausted  = errors.New("ratchet: maximum generation reached")
	ErrInvalidGeneration = errors.New("ratchet: invalid generation number")
	ErrInvalidChainKey   = errors.New("ratchet: chain key must be 32 bytes")
)

const (
	// MaxGeneration is the maximum number of ratchet steps before a new key
	// exchange is required.
	MaxGeneration = 1 << 32

	// DefaultMaxSkip bounds how far ahead of the expected generation a message
	// may arrive, and how many skipped message keys are retained.
	DefaultMaxSkip = 1000
)

// deriveKeys derives (nextChainKey, messageKey) from a chain key:
//
//	messageKey   = SHA-512(chainKey || 0x01)
//	nextChainKey = SHA-256(chainKey || 0x02)
func deriveKeys(chainKey [32]byte) ([32]byte, crypto.KeyMaterial64) {
	var mk crypto.KeyMaterial64
	h := sha512.New()
	h.Write(chainKey[:])
	h.Write([]byte{0x01})
	copy(mk[:], h.Sum(nil))

	h2 := sha256.New()
	h2.Write(chainKey[:])
	h2.Write([]byte{0x02})
	var next [32]byte
	copy(next[:], h2.Sum(nil))

	return next, mk
}

// Chain is the sending half of a symmetric key ratchet. Each step yields the
// key material for one message and replaces the chain key.
type Chain struct {
	mu         sync.Mutex
	chainKey   [32]byte
	generation uint64
}

// NewChain creates a sending chain from a 32-byte initial chain key.
func NewChain(initialKey []byte) (*Chain, error) {
	if len(initialKey) != 32 {
		return nil, ErrInvalidChainKey
	}
	c := &Chain{}
	copy(c.chainKey[:], initialKey)
	return c, nil
}

// Next advances the chain and returns the message key and its generation.
func (c *Chain) Next() (crypto.KeyMaterial64, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation >= MaxGeneration {
		return crypto.KeyMaterial64{}, 0, ErrRatchetExhausted
	}
	next, mk := deriveKeys(c.chainKey)
	gen := c.generation
	c.chainKey = next
	c.generation++
	return mk, gen, nil
}

// Generation returns the generation the next message will use.
func (c *Chain) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Receiver is the receiving half of a chain. It tolerates reordering within
// maxSkip generations and refuses replays.
type Receiver struct {
	mu         sync.Mutex
	skipped    map[uint64][32]byte // chain keys of generations not yet received
	current    [32]byte
	currentGen uint64
	maxSkip    int
}

// NewReceiver creates a receiving chain that keeps at most maxSkip skipped
// message keys (DefaultMaxSkip when <= 0).
func NewReceiver(initialKey []byte, maxSkip int) (*Receiver, error) {
	if len(initialKey) != 32 {
		return nil, ErrInvalidChainKey
	}
	if maxSkip <= 0 {
		maxSkip = DefaultMaxSkip
	}
	r := &Receiver{
		skipped: make(map[uint64][32]byte),
		maxSkip: maxSkip,
	}
	copy(r.current[:], initialKey)
	return r, nil
}

// Open hands the message key for gen to open. The receiver state only advances
// when open succeeds, so a forged message cannot desynchronize the chain.
func (r *Receiver) Open(gen uint64, open func(crypto.KeyMaterial64) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case gen == r.currentGen:
		next, mk := deriveKeys(r.current)
		if err := open(mk); err != nil {
			return err
		}
		r.current = next
		r.currentGen++
		return nil

	case gen < r.currentGen:
		chainKey, ok := r.skipped[gen]
		if !ok {
			// Already received, or evicted.
			return ErrInvalidGeneration
		}
		_, mk := deriveKeys(chainKey)
		if err := open(mk); err != nil {
			return err
		}
		delete(r.skipped, gen)
		return nil
	}

	if gen >= MaxGeneration || gen-r.currentGen > uint64(r.maxSkip) {
		return ErrInvalidGeneration
	}
	skipped := make(map[uint64][32]byte, gen-r.currentGen)
	chainKey := r.current
	for i := r.currentGen; i < gen; i++ {
		skipped[i] = chainKey
		chainKey, _ = deriveKeys(chainKey)
	}
	next, mk := deriveKeys(chainKey)
	if err := open(mk); err != nil {
		return err
	}
	for g, k := range skipped {
		r.skipped[g] = k
	}
	r.current = next
	r.currentGen = gen + 1
	r.evict()
	return nil
}

// evict drops skipped keys that fell more than maxSkip generations behind.
func (r *Receiver) evict() {
	if r.currentGen <= uint64(r.maxSkip) {
		return
	}
	floor := r.currentGen - uint64(r.maxSkip)
	for g := range r.skipped {
		if g < floor {
			delete(r.skipped, g)
		}
	}
}

// Pending reports how many skipped message keys are retained.
func (r *Receiver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.skipped)
}
