package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"
	"math"
	"math/bits"

	"golang.org/x/crypto/hkdf"
)

const randomSeedInfo = "visualcrypt/random/1"

// Thresholds used by TestRandomNumberGeneration.
const (
	maxMonobitZ    = 4.0
	maxChiSquareZ  = 5.0
	minChiSqBytes  = 256 * 5
	runLengthSlack = 12
)

// RandomQuality summarizes a statistical check of random output.
type RandomQuality struct {
	Samples    int
	BitsTested int
	OnesRatio  float64
	MonobitZ   float64
	// ChiSquare is the byte-frequency statistic (255 degrees of freedom);
	// it is only evaluated when enough bytes were sampled.
	ChiSquare        float64
	ChiSquareApplied bool
	LongestRun       int
	MaxRun           int
	Passed           bool
	Reason           string
}

// QualifiedRandom is random output together with how it was produced.
type QualifiedRandom struct {
	Bytes []byte
	// Seeded is true when Bytes were expanded from a caller seed and are
	// therefore not secret.
	Seeded  bool
	Quality *RandomQuality
}

// GetRandom returns length random bytes. A non-nil seed expands it with
// HKDF-SHA256 instead; seeded output is reproducible and meant for tests only.
func (s *Service) GetRandom(length int, seed []byte) (QualifiedRandom, error) {
	if length < 1 {
		return QualifiedRandom{}, fmt.Errorf("%w: random length %d", ErrInvalidArgument, length)
	}
	if seed == nil {
		b, err := s.p.RandomBytes(length)
		if err != nil {
			return QualifiedRandom{}, err
		}
		return QualifiedRandom{Bytes: b}, nil
	}

	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, []byte(randomSeedInfo)), out); err != nil {
		return QualifiedRandom{}, fmt.Errorf("%w: seed expansion: %v", ErrInvalidArgument, err)
	}
	return QualifiedRandom{Bytes: out, Seeded: true}, nil
}

// TestRandomNumberGeneration draws sampleSize samples of length bytes from the
// platform and runs a monobit test, a byte chi-square test and a longest-run
// check over them. It is a diagnostic and does not belong on a hot path.
func (s *Service) TestRandomNumberGeneration(sampleSize, length int) (QualifiedRandom, error) {
	if sampleSize < 1 || length < 1 {
		return QualifiedRandom{}, fmt.Errorf("%w: sample size %d, length %d", ErrInvalidArgument, sampleSize, length)
	}

	var (
		counts  [256]int
		ones    int
		run     int
		longest int
		prevBit = -1
		last    []byte
	)
	for i := 0; i < sampleSize; i++ {
		sample, err := s.p.RandomBytes(length)
		if err != nil {
			return QualifiedRandom{}, err
		}
		for _, b := range sample {
			counts[b]++
			ones += bits.OnesCount8(b)
			for j := 7; j >= 0; j-- {
				bit := int(b>>uint(j)) & 1
				if bit == prevBit {
					run++
				} else {
					run = 1
					prevBit = bit
				}
				if run > longest {
					longest = run
				}
			}
		}
		last = sample
	}

	q := assessQuality(counts, ones, longest, sampleSize, sampleSize*length)
	return QualifiedRandom{Bytes: last, Quality: &q}, nil
}

func assessQuality(counts [256]int, ones, longest, samples, totalBytes int) RandomQuality {
	n := totalBytes * 8
	q := RandomQuality{
		Samples:    samples,
		BitsTested: n,
		OnesRatio:  float64(ones) / float64(n),
		MonobitZ:   (float64(ones) - float64(n)/2) / math.Sqrt(float64(n)/4),
		LongestRun: longest,
		MaxRun:     int(math.Ceil(math.Log2(float64(n)))) + runLengthSlack,
		Passed:     true,
	}

	if totalBytes >= minChiSqBytes {
		expected := float64(totalBytes) / 256
		for _, c := range counts {
			d := float64(c) - expected
			q.ChiSquare += d * d / expected
		}
		q.ChiSquareApplied = true
	}

	switch {
	case math.Abs(q.MonobitZ) > maxMonobitZ:
		q.Passed = false
		q.Reason = fmt.Sprintf("bit balance off: ones ratio %.4f (z=%.2f)", q.OnesRatio, q.MonobitZ)
	case q.ChiSquareApplied && (q.ChiSquare-255)/math.Sqrt(2*255) > maxChiSquareZ:
		q.Passed = false
		q.Reason = fmt.Sprintf("byte distribution skewed: chi-square %.1f", q.ChiSquare)
	case q.LongestRun > q.MaxRun:
		q.Passed = false
		q.Reason = fmt.Sprintf("run of %d equal bits exceeds %d", q.LongestRun, q.MaxRun)
	default:
		q.Reason = "ok"
	}
	return q
}
