package session

import (
	"errors"
	"sync"
	"time"

	"github.com/TheusHen/VisualCrypt/vcrypt/identity"
)

var ErrSecretNotFound = errors.New("session: dynamic secret not found")

// DynamicSecret is the shared secret of one key exchange with a recipient.
type DynamicSecret struct {
	RecipientID         identity.RecipientID
	DynamicSharedSecret []byte
	// DynamicPublicKey is the local dynamic public key announced in the
	// exchange; DynamicPublicKeyID is its short id.
	DynamicPublicKey   []byte
	DynamicPublicKeyID string
	PrivateKeyHint     string
	UseCount           uint64
	CreatedAt          time.Time
}

func (d DynamicSecret) clone() DynamicSecret {
	d.DynamicSharedSecret = append([]byte(nil), d.DynamicSharedSecret...)
	d.DynamicPublicKey = append([]byte(nil), d.DynamicPublicKey...)
	return d
}

// Repository holds at most one active DynamicSecret per recipient. A single
// mutex serializes every access, so use counts never lose updates and a
// replacement never interleaves with a use.
type Repository struct {
	mu      sync.Mutex
	secrets map[identity.RecipientID]*DynamicSecret
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{secrets: make(map[identity.RecipientID]*DynamicSecret)}
}

// Get returns a copy of the active secret for id.
func (r *Repository) Get(id identity.RecipientID) (DynamicSecret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.secrets[id]
	if !ok {
		return DynamicSecret{}, ErrSecretNotFound
	}
	return s.clone(), nil
}

// Put stores secret for id, replacing any previous entry.
func (r *Repository) Put(id identity.RecipientID, secret DynamicSecret) {
	secret = secret.clone()
	secret.RecipientID = id
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.secrets[id] = &secret
}

// Invalidate removes the secret for id and reports whether one existed.
func (r *Repository) Invalidate(id identity.RecipientID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.secrets[id]
	delete(r.secrets, id)
	return ok
}

// invalidateExchange removes the secret for id only if it still belongs to the
// exchange identified by keyID.
func (r *Repository) invalidateExchange(id identity.RecipientID, keyID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.secrets[id]
	if !ok || s.DynamicPublicKeyID != keyID {
		return false
	}
	delete(r.secrets, id)
	return true
}

// IncrementUseCount charges one use to the secret for id and returns the new
// count. A non-empty keyID must match the active secret; a secret that was
// superseded by a newer exchange is reported as ErrSecretNotFound.
func (r *Repository) IncrementUseCount(id identity.RecipientID, keyID string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.secrets[id]
	if !ok || (keyID != "" && s.DynamicPublicKeyID != keyID) {
		return 0, ErrSecretNotFound
	}
	s.UseCount++
	return s.UseCount, nil
}

// ResetUseCount sets the use count of the secret for id back to zero.
func (r *Repository) ResetUseCount(id identity.RecipientID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.secrets[id]
	if !ok {
		return ErrSecretNotFound
	}
	s.UseCount = 0
	return nil
}

// Prune removes secrets created before now-maxAge and returns how many were removed.
func (r *Repository) Prune(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, s := range r.secrets {
		if s.CreatedAt.Before(cutoff) {
			delete(r.secrets, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of active secrets.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.secrets)
}
