// Package backup splits VisualCrypt text into Reed-Solomon shards for paper
// backups. Any DataShards of the shards recover the original.
package backup

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/klauspost/reedsolomon"
)

var (
	ErrTooManyLost   = errors.New("backup: too many shards lost, cannot recover")
	ErrInvalidConfig = errors.New("backup: invalid data/parity configuration")
	ErrMalformed     = errors.New("backup: malformed backup sheet")
)

const sheetHeader = "VisualCrypt-Backup"

// Sheet is a sharded backup. Missing or damaged shards are nil.
type Sheet struct {
	DataShards   int
	ParityShards int
	// Size is the length of the original data before padding.
	Size   int
	Shards [][]byte
}

// Split encodes data into dataShards data shards plus parityShards parity shards.
func Split(data []byte, dataShards, parityShards int) (Sheet, error) {
	if len(data) == 0 {
		return Sheet{}, fmt.Errorf("%w: nothing to back up", ErrInvalidConfig)
	}
	enc, err := newEncoder(dataShards, parityShards)
	if err != nil {
		return Sheet{}, err
	}
	shards, err := enc.Split(data)
	if err != nil {
		return Sheet{}, err
	}
	if err := enc.Encode(shards); err != nil {
		return Sheet{}, err
	}
	return Sheet{
		DataShards:   dataShards,
		ParityShards: parityShards,
		Size:         len(data),
		Shards:       shards,
	}, nil
}

// Recover reconstructs the original data from the shards that are present.
func Recover(s Sheet) ([]byte, error) {
	enc, err := newEncoder(s.DataShards, s.ParityShards)
	if err != nil {
		return nil, err
	}
	if len(s.Shards) != s.DataShards+s.ParityShards {
		return nil, fmt.Errorf("%w: %d shards, want %d", ErrMalformed, len(s.Shards), s.DataShards+s.ParityShards)
	}
	shards := make([][]byte, len(s.Shards))
	copy(shards, s.Shards)

	if err := enc.ReconstructData(shards); err != nil {
		if errors.Is(err, reedsolomon.ErrTooFewShards) {
			return nil, ErrTooManyLost
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if s.Size <= 0 || s.Size > s.DataShards*len(shards[0]) {
		return nil, fmt.Errorf("%w: size %d does not fit %d shards of %d bytes", ErrMalformed, s.Size, s.DataShards, len(shards[0]))
	}
	out := make([]byte, 0, s.Size)
	for i := 0; i < s.DataShards && len(out) < s.Size; i++ {
		remaining := s.Size - len(out)
		if remaining >= len(shards[i]) {
			out = append(out, shards[i]...)
		} else {
			out = append(out, shards[i][:remaining]...)
		}
	}
	if len(out) != s.Size {
		return nil, fmt.Errorf("%w: shards hold %d bytes, want %d", ErrMalformed, len(out), s.Size)
	}
	return out, nil
}

func newEncoder(dataShards, parityShards int) (reedsolomon.Encoder, error) {
	if dataShards <= 0 || parityShards <= 0 {
		return nil, ErrInvalidConfig
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return enc, nil
}

// Encode renders the sheet as printable text, one line per shard:
//
//	VisualCrypt-Backup <data> <parity> <size>
//	<index> <crc32 hex> <base64 shard>
//
// Missing shards are omitted.
func (s Sheet) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d %d %d\n", sheetHeader, s.DataShards, s.ParityShards, s.Size)
	for i, shard := range s.Shards {
		if shard == nil {
			continue
		}
		fmt.Fprintf(&b, "%d %08x %s\n", i, crc32.ChecksumIEEE(shard), base64.StdEncoding.EncodeToString(shard))
	}
	return b.String()
}

// ParseSheet reads text produced by Encode. Lines that are missing, fail their
// checksum or cannot be decoded leave their shard nil so Recover can rebuild it.
func ParseSheet(text string) (Sheet, error) {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)

	var s Sheet
	headerSeen := false
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if !headerSeen {
			if len(fields) != 4 || fields[0] != sheetHeader {
				return Sheet{}, fmt.Errorf("%w: missing header", ErrMalformed)
			}
			var err error
			if s.DataShards, err = strconv.Atoi(fields[1]); err != nil {
				return Sheet{}, fmt.Errorf("%w: data shards: %v", ErrMalformed, err)
			}
			if s.ParityShards, err = strconv.Atoi(fields[2]); err != nil {
				return Sheet{}, fmt.Errorf("%w: parity shards: %v", ErrMalformed, err)
			}
			if s.Size, err = strconv.Atoi(fields[3]); err != nil {
				return Sheet{}, fmt.Errorf("%w: size: %v", ErrMalformed, err)
			}
			if s.DataShards <= 0 || s.ParityShards <= 0 || s.DataShards+s.ParityShards > 256 || s.Size <= 0 {
				return Sheet{}, fmt.Errorf("%w: bad dimensions", ErrMalformed)
			}
			s.Shards = make([][]byte, s.DataShards+s.ParityShards)
			headerSeen = true
			continue
		}
		if len(fields) != 3 {
			continue
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil || idx < 0 || idx >= len(s.Shards) {
			continue
		}
		sum, err := strconv.ParseUint(fields[1], 16, 32)
		if err != nil {
			continue
		}
		shard, err := base64.StdEncoding.DecodeString(fields[2])
		if err != nil || crc32.ChecksumIEEE(shard) != uint32(sum) {
			continue
		}
		s.Shards[idx] = shard
	}
	if err := sc.Err(); err != nil {
		return Sheet{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !headerSeen {
		return Sheet{}, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	for _, shard := range s.Shards {
		if shard != nil && s.Size > s.DataShards*len(shard) {
			return Sheet{}, fmt.Errorf("%w: size %d exceeds shard capacity", ErrMalformed, s.Size)
		}
	}
	return s, nil
}
