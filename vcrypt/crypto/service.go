package crypto

import (
	"github.com/TheusHen/VisualCrypt/vcrypt/platform"
)

// Options configures a Service. The zero value is valid.
type Options struct {
	// Curve is used by GenerateECKeyPair. Defaults to CurveX25519.
	Curve Curve
}

// Service is the VisualCrypt engine. It holds no mutable state and is safe for
// concurrent use as long as the platform is.
type Service struct {
	p     platform.Platform
	curve Curve
}

// New returns a Service composed over p. A nil p selects platform.NewNative().
func New(p platform.Platform, opts Options) *Service {
	if p == nil {
		p = platform.NewNative()
	}
	if opts.Curve == 0 {
		opts.Curve = CurveX25519
	}
	return &Service{p: p, curve: opts.Curve}
}

// Platform returns the primitive provider the service is composed over.
func (s *Service) Platform() platform.Platform { return s.p }
