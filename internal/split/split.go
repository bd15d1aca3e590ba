// Package split partitions cleaned records into disjoint train, validation and
// test sets. Both strategies are pure functions of the row identifiers, the
// ratios and the seeds.
package split

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"math/rand"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/internal/listing"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	"github.com/cespare/xxhash/v2"
)

// Strategies accepted by New.
const (
	StrategyRandom = "random"
	StrategyHash   = "hash"
)

// Partitions holds the three disjoint sets.
type Partitions struct {
	Train []listing.Record
	Val   []listing.Record
	Test  []listing.Record
}

// Total is the number of rows across all partitions.
func (p Partitions) Total() int {
	return len(p.Train) + len(p.Val) + len(p.Test)
}

// Splitter assigns rows to partitions.
type Splitter interface {
	Split(rows []listing.Record) Partitions
}

// New returns the splitter named by cfg.Strategy.
func New(cfg config.SplitConfig) (Splitter, error) {
	switch cfg.Strategy {
	case StrategyRandom, "":
		return Random{TestRatio: cfg.TestRatio, ValRatio: cfg.ValRatio, TestSeed: cfg.TestSeed, ValSeed: cfg.ValSeed}, nil
	case StrategyHash:
		return Hash{TestRatio: cfg.TestRatio, ValRatio: cfg.ValRatio, ValSeed: cfg.ValSeed}, nil
	default:
		return nil, fmt.Errorf("unknown split strategy %q", cfg.Strategy)
	}
}

// Random shuffles rows with a seeded generator in two stages: first the test
// set is carved from all rows, then the validation set from the remainder.
type Random struct {
	TestRatio float64
	ValRatio  float64
	TestSeed  int64
	ValSeed   int64
}

func (s Random) Split(rows []listing.Record) Partitions {
	rest, test := shuffleSplit(rows, s.TestRatio, s.TestSeed)
	train, val := shuffleSplit(rest, s.ValRatio, s.ValSeed)
	return Partitions{Train: train, Val: val, Test: test}
}

// shuffleSplit permutes rows and returns (kept, carved) where carved holds
// ceil(ratio*n) rows.
func shuffleSplit(rows []listing.Record, ratio float64, seed int64) ([]listing.Record, []listing.Record) {
	n := len(rows)
	nCarve := int(math.Ceil(ratio*float64(n) - 1e-9))
	if nCarve < 0 {
		nCarve = 0
	}
	if nCarve > n {
		nCarve = n
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	carved := make([]listing.Record, 0, nCarve)
	kept := make([]listing.Record, 0, n-nCarve)
	for i, p := range perm {
		if i < nCarve {
			carved = append(carved, rows[p])
		} else {
			kept = append(kept, rows[p])
		}
	}
	return kept, carved
}

// Hash assigns each row by hashing its ID, so a row keeps its partition
// across re-runs even as new rows arrive. Rows outside the test set go to
// validation with probability ValRatio, drawn from a hash of (ValSeed, ID)
// that is independent of the test hash.
type Hash struct {
	TestRatio float64
	ValRatio  float64
	ValSeed   int64
}

func (s Hash) Split(rows []listing.Record) Partitions {
	var p Partitions
	for _, r := range rows {
		switch {
		case InTestSet(r.ID, s.TestRatio):
			p.Test = append(p.Test, r)
		case unitHash(s.ValSeed, r.ID) < s.ValRatio:
			p.Val = append(p.Val, r)
		default:
			p.Train = append(p.Train, r)
		}
	}
	return p
}

// InTestSet reports whether id hashes into the lowest ratio fraction of the
// crc32 range. The id is hashed as 8 little-endian bytes.
func InTestSet(id int64, ratio float64) bool {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	return float64(crc32.ChecksumIEEE(buf[:])) < ratio*(1<<32)
}

// unitHash maps (seed, id) to a uniform value in [0, 1). crc32 is linear in
// its input, so salting the test hash would only XOR it with a constant.
func unitHash(seed, id int64) float64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(id))
	return float64(xxhash.Sum64(buf[:])>>11) / (1 << 53)
}
