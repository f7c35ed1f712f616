package testing_util

import (
	"fmt"
	"math/rand"
)

// NewRand returns a deterministic RNG for reproducible property tests.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Members returns count distinct member names in a shuffled order.
func Members(rng *rand.Rand, count int) (out []string) {
	out = make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, fmt.Sprintf("member-%04d", i))
	}
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Bytes returns a pseudo-random payload of the given length.
func Bytes(rng *rand.Rand, length int) (out []byte) {
	out = make([]byte, length)
	for i := range out {
		out[i] = byte('a' + rng.Intn(26))
	}
	return out
}
