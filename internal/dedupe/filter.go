// Package dedupe provides approximate duplicate primary-key detection for a
// single ingest run. EPF exports are supposed to be unique on their declared
// primary key, but upstream extracts occasionally repeat rows; an exact set
// would not fit in memory at feed scale, so a bloom filter gives a bounded-
// memory estimate that is reported as a diagnostic at end of run.
package dedupe

import (
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"

	"github.com/epforge/epforge/internal/scan"
	"github.com/epforge/epforge/pkg/types"
)

// Filter is a bloom filter using murmur3 128-bit double hashing. It
// guarantees no false negatives: if a key was added, Contains always
// returns true. The pipeline is single-threaded, so no locking.
type Filter struct {
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// NewFilter creates a Filter with the specified number of bits and hash
// functions, rounding bits up to a multiple of 64.
func NewFilter(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	numWords := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// NewFilterWithEstimates creates a Filter sized for the expected number of
// keys and target false positive rate.
func NewFilterWithEstimates(expectedItems int, targetFPR float64) *Filter {
	numBits, numHashes := OptimalParameters(expectedItems, targetFPR)
	return NewFilter(numBits, numHashes)
}

// OptimalParameters calculates the optimal number of bits and hash
// functions for a given expected item count and target false positive rate.
//
// The formulas are:
//   - m = -n * ln(p) / (ln(2)^2)  where m = bits, n = items, p = FPR
//   - k = (m/n) * ln(2)           where k = hash functions
func OptimalParameters(expectedItems int, targetFPR float64) (numBits, numHashes int) {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	numBits = int(math.Ceil(m))
	numHashes = int(math.Ceil((m / n) * math.Ln2))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}
	return numBits, numHashes
}

// Add adds a key to the filter.
func (f *Filter) Add(key []byte) {
	h1, h2 := hash128(key)
	for i := uint64(0); i < f.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// Contains tests if a key might be in the filter. A true result may be a
// false positive; false means the key was definitely never added.
func (f *Filter) Contains(key []byte) bool {
	h1, h2 := hash128(key)
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of keys added.
func (f *Filter) Count() uint64 {
	return f.count
}

// FalsePositiveRate returns the estimated false positive rate at the
// current fill level: (1 - e^(-k*n/m))^k.
func (f *Filter) FalsePositiveRate() float64 {
	if f.count == 0 {
		return 0
	}
	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

func hash128(key []byte) (uint64, uint64) {
	h := murmur3.New128()
	h.Write(key)
	return h.Sum128()
}

// KeyFilter observes the primary-key values of accepted rows and counts
// suspected duplicates.
type KeyFilter struct {
	filter     *Filter
	keyColumns []string
	observed   int64
	duplicates int64
	buf        []byte
}

// NewKeyFilter creates a KeyFilter for the schema's primary key columns.
// Returns nil when the schema declares no primary key.
func NewKeyFilter(schema *types.Schema, expectedRows int, targetFPR float64) *KeyFilter {
	if len(schema.PrimaryKeys) == 0 {
		return nil
	}
	return &KeyFilter{
		filter:     NewFilterWithEstimates(expectedRows, targetFPR),
		keyColumns: schema.PrimaryKeys,
	}
}

// Observe records one accepted row's primary key.
func (k *KeyFilter) Observe(row types.Row) {
	k.buf = k.buf[:0]
	for i, col := range k.keyColumns {
		if i > 0 {
			k.buf = append(k.buf, scan.FieldSeparator)
		}
		switch v := row[col].(type) {
		case string:
			k.buf = append(k.buf, v...)
		case nil:
		default:
			k.buf = append(k.buf, fmt.Sprint(v)...)
		}
	}

	k.observed++
	if k.filter.Contains(k.buf) {
		k.duplicates++
		return
	}
	k.filter.Add(k.buf)
}

// Observed returns the number of rows seen.
func (k *KeyFilter) Observed() int64 {
	return k.observed
}

// Duplicates returns the approximate number of repeated primary keys. The
// estimate can exceed the true count by the filter's false positive rate.
func (k *KeyFilter) Duplicates() int64 {
	return k.duplicates
}
