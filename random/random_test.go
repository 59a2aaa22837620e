package random

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamIsSeeded(t *testing.T) {
	a := NewStream(42)
	b := NewStream(42)
	for range 100 {
		require.Equal(t, a.Float64(), b.Float64())
		require.Equal(t, a.IntN(17), b.IntN(17))
	}
	require.Equal(t, 0, a.IntN(0))
}

func TestKeyedStreamIgnoresInterleaving(t *testing.T) {
	a := NewKeyedStream(7)
	b := NewKeyedStream(7)

	// a draws person 1 first, b draws person 2 first
	var seqA, seqB []float64
	for range 10 {
		seqA = append(seqA, a.Float64(1))
	}
	for range 10 {
		b.Float64(2)
	}
	for range 10 {
		seqB = append(seqB, b.Float64(1))
	}
	require.Equal(t, seqA, seqB)
}

func TestKeyedStreamsDifferPerKey(t *testing.T) {
	k := NewKeyedStream(7)
	same := 0
	for range 50 {
		if k.IntN(1, 1000) == k.IntN(2, 1000) {
			same++
		}
	}
	require.Less(t, same, 5)
	require.Equal(t, 0, k.IntN(3, -1))
}
