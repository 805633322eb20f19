package dictionary

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

// SymbolCount is a symbol with its corpus frequency.
type SymbolCount struct {
	Symbol string
	Count  int
}

// SortCounts drops symbols seen fewer than minCount times and orders the rest
// by count descending, then symbol ascending.
func SortCounts(counts map[string]int, minCount int) []SymbolCount {
	out := make([]SymbolCount, 0, len(counts))
	for sym, n := range counts {
		if n >= minCount {
			out = append(out, SymbolCount{Symbol: sym, Count: n})
		}
	}
	slices.SortFunc(out, func(a, b SymbolCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Symbol, b.Symbol)
	})
	return out
}

// Rebuild creates a dictionary with old's schema and width holding counts,
// initializes it with random vectors and copies over the vector of every
// symbol old already knows. It returns the new store and how many vectors
// were transferred. The new store is unbound; saving it starts a new content
// version.
func Rebuild(old *Store, counts []SymbolCount, rng *rand.Rand, opts ...Option) (*Store, int) {
	s := New(old.schema, old.width, opts...)
	for _, c := range counts {
		s.addSymbol(c.Symbol, c.Count)
	}
	s.GenerateRandomVectors(rng)

	old.mu.RLock()
	defer old.mu.RUnlock()
	if old.vectors == nil {
		return s, 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	transferred := 0
	for id, sym := range s.symbols {
		if oid, ok := old.ids[sym]; ok {
			s.vectors.SetRow(id, old.vectors.Row(oid))
			transferred++
		}
	}
	return s, transferred
}
