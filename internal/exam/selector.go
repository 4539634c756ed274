package exam

import (
	"encoding/binary"
	"math/rand/v2"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DefaultExamLimit is the number of questions served per section.
const DefaultExamLimit = 20

// SeedFor derives the shuffle seed for a candidate. The derivation is part
// of the observable contract: changing it changes every candidate's exam.
//
//	d      = BLAKE2b-256(NormalizeIdentity(identity))
//	hi, lo = big-endian uint64 of d[0:8] and d[8:16]
func SeedFor(identity string) (hi, lo uint64) {
	d := blake2b.Sum256([]byte(NormalizeIdentity(identity)))
	return binary.BigEndian.Uint64(d[0:8]), binary.BigEndian.Uint64(d[8:16])
}

// SelectExam filters bank to section (trimmed, case-insensitive), orders the
// matches with a Fisher-Yates shuffle driven by PCG-DXSM seeded from
// SeedFor(identity), and returns the first min(limit, matches) questions.
// bank is not modified.
func SelectExam(bank []Question, section, identity string, limit int) []Question {
	if limit <= 0 {
		return []Question{}
	}
	want := strings.TrimSpace(section)
	filtered := make([]Question, 0, len(bank))
	for _, q := range bank {
		if strings.EqualFold(strings.TrimSpace(q.Section), want) {
			filtered = append(filtered, q)
		}
	}
	if len(filtered) == 0 {
		return filtered
	}

	shuffle(filtered, rand.NewPCG(SeedFor(identity)))
	if limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered
}

// shuffle walks from the last index down, swapping i with j = Uint64() mod (i+1).
// The loop is spelled out rather than using rand.Shuffle so the ordering
// depends only on the PCG output stream.
func shuffle(qs []Question, src *rand.PCG) {
	for i := len(qs) - 1; i > 0; i-- {
		j := int(src.Uint64() % uint64(i+1))
		qs[i], qs[j] = qs[j], qs[i]
	}
}
