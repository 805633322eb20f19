package sense

import (
	"fmt"
	"iter"

	"github.com/hupe1980/ober/dictionary"
	"github.com/hupe1980/ober/graph"
	"github.com/hupe1980/ober/internal/math32"
	"github.com/hupe1980/ober/version"
)

// PoolStats summarizes a Pool call.
type PoolStats struct {
	Senses  int
	Members int
	// Unweighted counts senses whose member weights summed to zero.
	Unweighted int
}

// Key returns the sense dictionary key of sense n of token.
func Key(token string, n int) string {
	return fmt.Sprintf("%s#%d", token, n)
}

// Pool builds a sense dictionary from cluster records. Each record adds the
// sense "<token>#<n>", where token is the record id decoded through tokens and
// n is the record marker, with the weighted average of its members' token
// vectors as its vector. A sense whose weights sum to zero gets a zero vector.
//
// width must equal the token vector width.
func Pool(tokens *dictionary.Store, clusters iter.Seq2[graph.Record, error], width int, opts ...dictionary.Option) (*dictionary.Store, PoolStats, error) {
	var st PoolStats
	vecs := tokens.Vectors()
	if vecs == nil {
		return nil, st, dictionary.ErrNoVectors
	}
	if width != vecs.Cols() {
		return nil, st, &dictionary.ShapeError{
			Op:       "pool senses",
			WantRows: vecs.Rows(), WantCols: vecs.Cols(),
			GotRows: vecs.Rows(), GotCols: width,
		}
	}
	symbols := tokens.Symbols()

	senses := dictionary.New(dictionary.SenseSchema, width, opts...)
	rows := make([][]float32, senses.Len())
	for i := range rows {
		rows[i] = make([]float32, width)
	}

	n := 0
	for rec, err := range clusters {
		if err != nil {
			return nil, st, fmt.Errorf("sense: cluster record %d: %w", n, err)
		}
		n++
		if rec.ID < 0 || int(rec.ID) >= len(symbols) {
			return nil, st, fmt.Errorf("sense: cluster record %d: token %d: %w", n-1, rec.ID, dictionary.ErrIndexOutOfRange)
		}
		if rec.Marker < 0 {
			return nil, st, fmt.Errorf("%w: cluster record %d has no sense id", version.ErrCorruptArtifact, n-1)
		}
		key := Key(symbols[rec.ID], int(rec.Marker))
		if senses.Contains(key) {
			return nil, st, fmt.Errorf("%w: duplicate sense %q", version.ErrCorruptArtifact, key)
		}

		vec := make([]float32, width)
		var total float32
		for _, m := range rec.Edges {
			if m.Neighbor < 0 || int(m.Neighbor) >= vecs.Rows() {
				return nil, st, fmt.Errorf("sense: sense %q member %d: %w", key, m.Neighbor, dictionary.ErrIndexOutOfRange)
			}
			math32.AxpyInPlace(vec, m.Weight, vecs.Row(int(m.Neighbor)))
			total += m.Weight
		}
		if total != 0 {
			math32.ScaleInPlace(vec, 1/total)
		} else {
			clear(vec)
			st.Unweighted++
		}

		senses.AddSymbol(key, 1)
		rows = append(rows, vec)
		st.Senses++
		st.Members += len(rec.Edges)
	}

	m := dictionary.NewMatrix(len(rows), width)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	if err := senses.UpdateVectors(m); err != nil {
		return nil, st, err
	}
	return senses, st, nil
}
