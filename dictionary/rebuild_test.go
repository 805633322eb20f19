package dictionary

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortCounts(t *testing.T) {
	got := SortCounts(map[string]int{"a": 3, "b": 10, "c": 3, "rare": 1}, 2)
	assert.Equal(t, []SymbolCount{{"b", 10}, {"a", 3}, {"c", 3}}, got)
}

func TestRebuildTransfersVectors(t *testing.T) {
	old := New(TokenSchema, 3)
	old.AddSymbol("cat", 5)
	old.AddSymbol("dog", 5)
	old.GenerateRandomVectors(rand.New(rand.NewPCG(9, 9)))

	s, n := Rebuild(old, []SymbolCount{{"fish", 9}, {"cat", 7}}, rand.New(rand.NewPCG(1, 2)))
	assert.Equal(t, []string{PadSymbol, UnknownSymbol, "fish", "cat"}, s.Symbols())
	assert.Equal(t, 7, s.Frequency("cat"))
	assert.Equal(t, 3, n, "reserved symbols and cat are transferred")

	oldCat, _ := old.Vector("cat")
	newCat, _ := s.Vector("cat")
	assert.Equal(t, oldCat, newCat)

	oldUnk, _ := old.Vector(UnknownSymbol)
	newUnk, _ := s.Vector(UnknownSymbol)
	assert.Equal(t, oldUnk, newUnk)

	fish, ok := s.Vector("fish")
	require.True(t, ok)
	assert.Len(t, fish, 3)
	assert.Equal(t, s.Len(), s.Vectors().Rows())
}

func TestRebuildWithoutOldVectors(t *testing.T) {
	old := New(TokenSchema, 2)
	s, n := Rebuild(old, []SymbolCount{{"a", 1}}, nil)
	assert.Zero(t, n)
	assert.True(t, s.HasVectors())
}
