package ratchet

import (
	"errors"
	"testing"

	"github.com/TheusHen/VisualCrypt/vcrypt/crypto"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

// accept records the key it was handed.
func accept(got *crypto.KeyMaterial64) func(crypto.KeyMaterial64) error {
	return func(km crypto.KeyMaterial64) error {
		*got = km
		return nil
	}
}

func TestChainReceiverInOrder(t *testing.T) {
	sender, err := NewChain(testKey())
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	receiver, err := NewReceiver(testKey(), 100)
	if err != nil {
		t.Fatalf("NewReceiver: %v", err)
	}

	seen := map[crypto.KeyMaterial64]bool{}
	for i := 0; i < 5; i++ {
		km, gen, err := sender.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if gen != uint64(i) {
			t.Fatalf("generation = %d, want %d", gen, i)
		}
		if seen[km] {
			t.Fatalf("message key repeated at generation %d", gen)
		}
		seen[km] = true

		var got crypto.KeyMaterial64
		if err := receiver.Open(gen, accept(&got)); err != nil {
			t.Fatalf("Open %d: %v", gen, err)
		}
		if got != km {
			t.Fatalf("receiver derived a different key at generation %d", gen)
		}
	}
	if sender.Generation() != 5 {
		t.Fatalf("Generation = %d", sender.Generation())
	}
}

func TestChainReceiverOutOfOrder(t *testing.T) {
	sender, _ := NewChain(testKey())
	receiver, _ := NewReceiver(testKey(), 100)

	var keys []crypto.KeyMaterial64
	for i := 0; i < 3; i++ {
		km, _, _ := sender.Next()
		keys = append(keys, km)
	}

	// Receive out of order: 2, 0, 1
	for _, gen := range []uint64{2, 0, 1} {
		var got crypto.KeyMaterial64
		if err := receiver.Open(gen, accept(&got)); err != nil {
			t.Fatalf("Open %d: %v", gen, err)
		}
		if got != keys[gen] {
			t.Fatalf("key mismatch at generation %d", gen)
		}
	}
	if receiver.Pending() != 0 {
		t.Fatalf("skipped keys left behind: %d", receiver.Pending())
	}
}

func TestReceiverRejectsReplay(t *testing.T) {
	receiver, _ := NewReceiver(testKey(), 100)
	var km crypto.KeyMaterial64
	if err := receiver.Open(0, accept(&km)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := receiver.Open(0, accept(&km)); !errors.Is(err, ErrInvalidGeneration) {
		t.Fatalf("expected ErrInvalidGeneration on replay, got %v", err)
	}
}

func TestReceiverMaxSkip(t *testing.T) {
	receiver, _ := NewReceiver(testKey(), 10)
	var km crypto.KeyMaterial64
	if err := receiver.Open(11, accept(&km)); !errors.Is(err, ErrInvalidGeneration) {
		t.Fatalf("expected ErrInvalidGeneration, got %v", err)
	}
	if err := receiver.Open(10, accept(&km)); err != nil {
		t.Fatalf("Open within window: %v", err)
	}
	if receiver.Pending() != 10 {
		t.Fatalf("Pending = %d, want 10", receiver.Pending())
	}
}

func TestReceiverFailedOpenKeepsState(t *testing.T) {
	sender, _ := NewChain(testKey())
	receiver, _ := NewReceiver(testKey(), 100)

	reject := func(crypto.KeyMaterial64) error { return crypto.ErrInvalidKeyOrData }
	if err := receiver.Open(50, reject); !errors.Is(err, crypto.ErrInvalidKeyOrData) {
		t.Fatalf("expected the open error, got %v", err)
	}
	if receiver.Pending() != 0 {
		t.Fatalf("forged message left skipped keys behind")
	}

	want, gen, _ := sender.Next()
	var got crypto.KeyMaterial64
	if err := receiver.Open(gen, accept(&got)); err != nil || got != want {
		t.Fatalf("receiver desynchronized after a forged message: %v", err)
	}
}

func TestChainRejectsShortKey(t *testing.T) {
	if _, err := NewChain(make([]byte, 16)); !errors.Is(err, ErrInvalidChainKey) {
		t.Fatalf("expected ErrInvalidChainKey, got %v", err)
	}
	if _, err := NewReceiver(nil, 0); !errors.Is(err, ErrInvalidChainKey) {
		t.Fatalf("expected ErrInvalidChainKey, got %v", err)
	}
}

func BenchmarkChainNext(b *testing.B) {
	c, _ := NewChain(testKey())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Next()
	}
}
