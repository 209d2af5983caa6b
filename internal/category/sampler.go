// Package category draws round categories without replacement.
package category

import (
	"errors"
	"math/rand/v2"
	"slices"
)

// DefaultPool is the drawable label set used when a session does not override it
var DefaultPool = []string{
	"apple", "sun", "tree", "house", "car", "cat", "fish",
	"star", "umbrella", "flower", "moon", "airplane", "bicycle", "clock",
}

// ErrEmptyPool is returned when there is nothing to draw from
var ErrEmptyPool = errors.New("category pool is empty")

// Sampler picks categories uniformly from the part of the pool not used yet.
// It is safe for concurrent use only if the random source is.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler creates a sampler. A nil rng uses a randomly seeded source.
func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng}
}

// Next draws a category from pool minus used. When every category has been used
// the cycle restarts: used is reset before drawing. The returned slice is the
// updated used set including the drawn category.
func (s *Sampler) Next(pool, used []string) (string, []string, error) {
	if len(pool) == 0 {
		return "", used, ErrEmptyPool
	}

	available := Remaining(pool, used)
	if len(available) == 0 {
		used = nil
		available = Remaining(pool, nil)
	}

	pick := available[s.rng.IntN(len(available))]
	next := make([]string, 0, len(used)+1)
	next = append(next, used...)
	next = append(next, pick)
	return pick, next, nil
}

// Remaining returns the distinct pool entries not in used, in pool order
func Remaining(pool, used []string) []string {
	var out []string
	for _, c := range pool {
		if slices.Contains(used, c) || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
