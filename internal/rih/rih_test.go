// Copyright 2025 Certen Protocol

package rih

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashOrderIndependent(t *testing.T) {
	pairs := []Pair{
		P("content-type", "text/plain"),
		P("host", "example.com"),
		{Name: ":ic-cert-status", Value: Number(200)},
		{Name: "digest", Value: Bytes([]byte{1, 2, 3})},
	}
	want := Hash(pairs)

	for i := 0; i < 20; i++ {
		shuffled := append([]Pair(nil), pairs...)
		rand.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		require.Equal(t, want, Hash(shuffled))
	}
}

func TestHashPreservesDuplicates(t *testing.T) {
	single := []Pair{P("x-a", "1")}
	doubled := []Pair{P("x-a", "1"), P("x-a", "1")}

	require.NotEqual(t, Hash(single), Hash(doubled))
}

func TestHashDistinguishesValueKinds(t *testing.T) {
	a := []Pair{{Name: "n", Value: String("1")}}
	b := []Pair{{Name: "n", Value: Number(1)}}
	require.NotEqual(t, Hash(a), Hash(b))
}

func TestHashArrayValue(t *testing.T) {
	a := []Pair{{Name: "n", Value: Array(String("x"), String("y"))}}
	b := []Pair{{Name: "n", Value: Array(String("y"), String("x"))}}
	require.NotEqual(t, Hash(a), Hash(b), "array order is significant, unlike the outer pair list")
}

func TestHashSensitiveToContent(t *testing.T) {
	a := Hash([]Pair{P("host", "a.example")})
	b := Hash([]Pair{P("host", "b.example")})
	require.NotEqual(t, a, b)
}
