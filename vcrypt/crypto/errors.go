package crypto

import (
	"errors"

	"github.com/TheusHen/VisualCrypt/vcrypt/platform"
)

var (
	// ErrInvalidKeyOrData is returned by every decrypt path when authentication
	// fails or the ciphertext is malformed. Its message is part of the API.
	ErrInvalidKeyOrData = errors.New("Either the key or the data is not valid.")

	// ErrFormat is returned when VisualCrypt armor or a binary container cannot be parsed.
	ErrFormat = errors.New("crypto: malformed VisualCrypt data")

	// ErrCancelled is returned when the context of a long-running operation is done.
	// No partial output is produced.
	ErrCancelled = errors.New("crypto: operation cancelled")

	// ErrInvalidArgument is the platform argument error, re-exported for callers of this package.
	ErrInvalidArgument = platform.ErrInvalidArgument
)
