package dictionary

import (
	"fmt"

	"github.com/hupe1980/ober/internal/math32"
	"github.com/hupe1980/ober/internal/queue"
)

// DefaultNeighbors is the default k of MostSimilar.
const DefaultNeighbors = 12

// Neighbor is one similarity result.
type Neighbor struct {
	ID     int
	Symbol string
	Score  float32
}

// normalizedLocked returns the cached unit-length matrix, building it if
// needed. Rows with zero norm stay zero. Caller holds s.mu for writing.
func (s *Store) normalizedLocked() *Matrix {
	if s.normalized != nil {
		return s.normalized
	}
	n := NewMatrix(s.vectors.rows, s.vectors.cols)
	for i := range s.vectors.rows {
		math32.NormalizeInto(n.Row(i), s.vectors.Row(i))
	}
	s.normalized = n
	return n
}

// Normalized returns a copy of the unit-length vectors.
func (s *Store) Normalized() (*Matrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vectors == nil {
		return nil, ErrNoVectors
	}
	return s.normalizedLocked().Clone(), nil
}

// MostSimilar returns up to k symbols closest to sym by cosine similarity,
// excluding sym itself, best first with ties broken by ascending id. Unknown
// symbols yield no results.
func (s *Store) MostSimilar(sym string, k int) ([]Neighbor, error) {
	s.mu.RLock()
	id, ok := s.ids[sym]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.MostSimilarID(id, k)
}

// MostSimilarID is MostSimilar for an id.
func (s *Store) MostSimilarID(id, k int) ([]Neighbor, error) {
	s.mu.Lock()
	if s.vectors == nil {
		s.mu.Unlock()
		return nil, ErrNoVectors
	}
	if id < 0 || id >= len(s.symbols) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: id %d, len %d", ErrIndexOutOfRange, id, len(s.symbols))
	}
	norm := s.normalizedLocked()
	symbols := s.symbols
	s.mu.Unlock()

	items := TopK(norm, id, k)
	out := make([]Neighbor, len(items))
	for i, it := range items {
		out[i] = Neighbor{ID: it.ID, Symbol: symbols[it.ID], Score: it.Score}
	}
	return out, nil
}

// TopK scores row id of a normalized matrix against every other row and
// returns the k best, score descending, ties by ascending id.
func TopK(norm *Matrix, id, k int) []queue.Item {
	if k <= 0 {
		return nil
	}
	target := norm.Row(id)
	q := queue.NewTopK(k)
	for j := range norm.rows {
		if j == id {
			continue
		}
		q.Push(queue.Item{ID: j, Score: math32.Dot(target, norm.Row(j))})
	}
	return q.Sorted()
}
