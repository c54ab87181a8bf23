package ratchet

import "context"

// Passthrough frames payloads unchanged. It provides no security: requests are
// never authenticated and always carry AnonymousUserID.
type Passthrough struct{}

func (Passthrough) Seal(_ context.Context, _ Role, cleartext []byte) ([]byte, error) {
	return cleartext, nil
}

func (Passthrough) Open(_ context.Context, _ Role, payload []byte) (Request, error) {
	return Request{
		CommandData:     append([]byte(nil), payload...),
		IsAuthenticated: false,
		UserID:          AnonymousUserID,
	}, nil
}
