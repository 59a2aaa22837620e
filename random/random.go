package random

import "math/rand/v2"

// GlobalRandom is the shared general-purpose stream. Its draws depend on the
// global event order, so reruns only reproduce when the event sequence does.
type GlobalRandom interface {
	Float64() float64
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// ReproducibleRandom draws from an independent stream per key, so the outcome
// for a given person does not depend on what other persons drew before.
type ReproducibleRandom interface {
	Float64(key int64) float64
	IntN(key int64, n int) int
}

// golden-ratio increment used to spread seeds over the PCG state space
const seedMix = 0x9e3779b97f4a7c15

// Stream is a seeded GlobalRandom
type Stream struct {
	r *rand.Rand
}

// NewStream creates a general-purpose stream from a seed
func NewStream(seed uint64) *Stream {
	return &Stream{r: rand.New(rand.NewPCG(seed, seed^seedMix))}
}

func (s *Stream) Float64() float64 {
	return s.r.Float64()
}

// IntN returns a value in [0, n); it returns 0 when n <= 0
func (s *Stream) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return s.r.IntN(n)
}

func (s *Stream) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// KeyedStream is a ReproducibleRandom backed by one lazily created PCG
// stream per key
type KeyedStream struct {
	seed    uint64
	streams map[int64]*rand.Rand
}

// NewKeyedStream creates a reproducible stream family from a seed
func NewKeyedStream(seed uint64) *KeyedStream {
	return &KeyedStream{
		seed:    seed,
		streams: make(map[int64]*rand.Rand),
	}
}

func (k *KeyedStream) stream(key int64) *rand.Rand {
	r, ok := k.streams[key]
	if !ok {
		r = rand.New(rand.NewPCG(k.seed, uint64(key)*seedMix+1))
		k.streams[key] = r
	}
	return r
}

func (k *KeyedStream) Float64(key int64) float64 {
	return k.stream(key).Float64()
}

// IntN returns a value in [0, n) from the stream of key; 0 when n <= 0
func (k *KeyedStream) IntN(key int64, n int) int {
	if n <= 0 {
		return 0
	}
	return k.stream(key).IntN(n)
}

// for type check
var (
	_ GlobalRandom       = (*Stream)(nil)
	_ ReproducibleRandom = (*KeyedStream)(nil)
)
