package sense

import (
	"errors"
	"iter"
	"testing"

	"github.com/hupe1980/ober/dictionary"
	"github.com/hupe1980/ober/graph"
	"github.com/hupe1980/ober/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(recs ...graph.Record) iter.Seq2[graph.Record, error] {
	return func(yield func(graph.Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// tokenFixture returns <PAD>=0, <UNK>=1, bank=2, river=3, money=4.
func tokenFixture(t *testing.T) *dictionary.Store {
	t.Helper()
	s := dictionary.New(dictionary.TokenSchema, 2)
	s.AddSymbols("bank", "river", "money")
	m, err := dictionary.NewMatrixFrom([]float32{
		0, 0,
		0, 0,
		1, 1,
		2, 0,
		0, 4,
	}, 5, 2)
	require.NoError(t, err)
	require.NoError(t, s.UpdateVectors(m))
	return s
}

func TestPool(t *testing.T) {
	tokens := tokenFixture(t)

	senses, st, err := Pool(tokens, records(
		graph.Record{ID: 2, Marker: 0, Edges: []graph.Edge{{Neighbor: 3, Weight: 1}}},
		graph.Record{ID: 2, Marker: 1, Edges: []graph.Edge{{Neighbor: 3, Weight: 1}, {Neighbor: 4, Weight: 3}}},
		graph.Record{ID: 4, Marker: 0, Edges: []graph.Edge{{Neighbor: 2, Weight: 0.5}, {Neighbor: 3, Weight: -0.5}}},
	), 2)
	require.NoError(t, err)

	assert.Equal(t, PoolStats{Senses: 3, Members: 5, Unweighted: 1}, st)
	assert.Equal(t, dictionary.SenseSchema.Name, senses.Schema().Name)
	assert.Equal(t, []string{"<UNK>", "bank#0", "bank#1", "money#0"}, senses.Symbols())
	assert.Equal(t, []string{"bank#0", "bank#1"}, senses.SensesForToken("bank"))

	v, ok := senses.Vector("bank#0")
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{2, 0}, v, 1e-6)

	v, _ = senses.Vector("bank#1")
	assert.InDeltaSlice(t, []float32{0.5, 3}, v, 1e-6)

	v, _ = senses.Vector("money#0")
	assert.Equal(t, []float32{0, 0}, v, "zero total weight pools to zero")

	v, _ = senses.Vector(dictionary.UnknownSymbol)
	assert.Equal(t, []float32{0, 0}, v)
}

func TestPoolEmpty(t *testing.T) {
	senses, st, err := Pool(tokenFixture(t), records(), 2)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Senses)
	assert.Equal(t, 1, senses.Len())
	assert.True(t, senses.HasVectors())
}

func TestPoolErrors(t *testing.T) {
	tokens := tokenFixture(t)

	t.Run("width", func(t *testing.T) {
		_, _, err := Pool(tokens, records(), 3)
		assert.ErrorIs(t, err, dictionary.ErrShapeMismatch)
	})
	t.Run("no vectors", func(t *testing.T) {
		_, _, err := Pool(dictionary.New(dictionary.TokenSchema, 2), records(), 2)
		assert.ErrorIs(t, err, dictionary.ErrNoVectors)
	})
	t.Run("unknown token", func(t *testing.T) {
		_, _, err := Pool(tokens, records(graph.Record{ID: 9}), 2)
		assert.ErrorIs(t, err, dictionary.ErrIndexOutOfRange)
	})
	t.Run("unknown member", func(t *testing.T) {
		_, _, err := Pool(tokens, records(graph.Record{ID: 2, Edges: []graph.Edge{{Neighbor: 5, Weight: 1}}}), 2)
		assert.ErrorIs(t, err, dictionary.ErrIndexOutOfRange)
	})
	t.Run("similarity graph", func(t *testing.T) {
		_, _, err := Pool(tokens, records(graph.Record{ID: 2, Marker: graph.NoSense}), 2)
		assert.ErrorIs(t, err, version.ErrCorruptArtifact)
	})
	t.Run("duplicate sense", func(t *testing.T) {
		_, _, err := Pool(tokens, records(graph.Record{ID: 2}, graph.Record{ID: 2}), 2)
		assert.ErrorIs(t, err, version.ErrCorruptArtifact)
	})
	t.Run("read error", func(t *testing.T) {
		broken := func(yield func(graph.Record, error) bool) {
			yield(graph.Record{}, graph.ErrTruncated)
		}
		_, _, err := Pool(tokens, broken, 2)
		assert.True(t, errors.Is(err, graph.ErrTruncated))
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "bank#3", Key("bank", 3))
}
