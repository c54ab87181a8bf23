package ratchet

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/TheusHen/VisualCrypt/vcrypt/protocol"
)

var ErrDecompressionFailed = errors.New("ratchet: decompression failed")

// compressorPool reuses LZ4 writers to reduce allocations.
var compressorPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewWriter(nil)
	},
}

var decompressorPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewReader(nil)
	},
}

// compress LZ4-compresses data. It reports false when compression fails or
// does not make the data smaller, in which case data should be sent as is.
func compress(data []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w := compressorPool.Get().(*lz4.Writer)
	defer compressorPool.Put(w)

	w.Reset(&buf)
	_ = w.Apply(lz4.CompressionLevelOption(lz4.Fast))

	if _, err := w.Write(data); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	if buf.Len() >= len(data) {
		return nil, false
	}
	return buf.Bytes(), true
}

// decompress reverses compress. Output is capped at the envelope size limit.
func decompress(data []byte) ([]byte, error) {
	r := decompressorPool.Get().(*lz4.Reader)
	defer decompressorPool.Put(r)

	r.Reset(bytes.NewReader(data))

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, protocol.MaxEnvelopeSize+1))
	if err != nil || n > protocol.MaxEnvelopeSize {
		return nil, ErrDecompressionFailed
	}
	return buf.Bytes(), nil
}
