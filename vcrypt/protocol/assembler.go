package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultScratchSize is the size of the per-read scratch buffer.
const DefaultScratchSize = 8 * 1024

type readResult struct {
	n   int
	err error
}

// Assembler turns successive reads from a byte stream into complete envelopes.
// Frames split across reads are accumulated; several frames in one read are all
// returned, in order. After every extraction pass the internal buffer holds
// nothing or the prefix of the next, still incomplete, frame.
//
// At most one read is in flight. A read started by a call whose context was
// cancelled is adopted by the next call, so no bytes are lost.
type Assembler struct {
	mu      sync.Mutex
	r       io.Reader
	scratch []byte
	payload []byte
	queue   []Envelope
	pending chan readResult
	err     error

	// buffered mirrors len(payload) so Buffered does not wait on mu, which
	// is held across blocking reads.
	buffered atomic.Int64
}

// NewAssembler reads envelopes from r using a scratch buffer of scratchSize bytes
// (DefaultScratchSize when <= 0).
func NewAssembler(r io.Reader, scratchSize int) *Assembler {
	if scratchSize <= 0 {
		scratchSize = DefaultScratchSize
	}
	return &Assembler{r: r, scratch: make([]byte, scratchSize)}
}

// Buffered returns the number of bytes held for an incomplete frame. It does
// not block while a read is in flight.
func (a *Assembler) Buffered() int {
	return int(a.buffered.Load())
}

// ReadEnvelopes performs one read and returns the envelopes it completed, which
// may be none. Envelopes already queued by Next are returned without reading.
//
// When the stream ends the remaining frames are returned first; subsequent calls
// return io.EOF, or io.ErrUnexpectedEOF if a partial frame was left behind.
// ErrFraming is fatal: the caller should close the stream.
func (a *Assembler) ReadEnvelopes(ctx context.Context) ([]Envelope, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.queue) > 0 {
		out := a.queue
		a.queue = nil
		return out, nil
	}
	return a.readEnvelopes(ctx)
}

// Next blocks until one envelope is available. ReadEnvelopes and Next
// serialize on the same lock, so a concurrent call waits for the read.
func (a *Assembler) Next(ctx context.Context) (Envelope, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for len(a.queue) == 0 {
		frames, err := a.readEnvelopes(ctx)
		if err != nil {
			return Envelope{}, err
		}
		a.queue = append(a.queue, frames...)
	}
	env := a.queue[0]
	a.queue = a.queue[1:]
	return env, nil
}

func (a *Assembler) readEnvelopes(ctx context.Context) ([]Envelope, error) {
	if a.err != nil {
		return nil, a.err
	}

	res, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	if res.n > 0 {
		a.payload = append(a.payload, a.scratch[:res.n]...)
	}

	frames, err := a.peel()
	a.buffered.Store(int64(len(a.payload)))
	if err != nil {
		a.err = err
		return nil, err
	}

	if res.err != nil {
		switch {
		case errors.Is(res.err, io.EOF) && len(a.payload) > 0:
			a.err = io.ErrUnexpectedEOF
		default:
			a.err = res.err
		}
		if len(frames) > 0 {
			return frames, nil
		}
		return nil, a.err
	}
	return frames, nil
}

// read waits for the in-flight read, starting one if none is pending.
func (a *Assembler) read(ctx context.Context) (readResult, error) {
	if a.pending == nil {
		ch := make(chan readResult, 1)
		a.pending = ch
		go func() {
			n, err := a.r.Read(a.scratch)
			ch <- readResult{n: n, err: err}
		}()
	}
	select {
	case res := <-a.pending:
		a.pending = nil
		return res, nil
	case <-ctx.Done():
		return readResult{}, ctx.Err()
	}
}

// peel removes every complete envelope from the front of the buffer.
func (a *Assembler) peel() ([]Envelope, error) {
	var frames []Envelope
	buf := a.payload
	for len(buf) >= HeaderSize {
		if err := validateHeader(buf[:HeaderSize]); err != nil {
			return nil, err
		}
		total := declaredLength(buf)
		if uint64(total) > uint64(len(buf)) {
			break
		}
		env, err := Decode(buf[:total])
		if err != nil {
			return nil, err
		}
		frames = append(frames, env)
		buf = buf[total:]
	}
	if len(buf) == 0 {
		a.payload = nil
	} else if len(buf) != len(a.payload) {
		a.payload = append([]byte(nil), buf...)
	}
	return frames, nil
}

// validateHeader rejects a header before the rest of its frame has arrived.
func validateHeader(header []byte) error {
	if header[0] != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrFraming, header[0])
	}
	if MessageType(header[1]) != MessageTypeCommand {
		return fmt.Errorf("%w: unsupported message type %d", ErrFraming, header[1])
	}
	total := declaredLength(header)
	if total < HeaderSize || total > MaxEnvelopeSize {
		return fmt.Errorf("%w: declared length %d out of range", ErrFraming, total)
	}
	return nil
}
