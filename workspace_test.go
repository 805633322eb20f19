package ober

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/ober/blobstore"
	"github.com/hupe1980/ober/corpus"
	"github.com/hupe1980/ober/dictionary"
	"github.com/hupe1980/ober/graph"
	"github.com/hupe1980/ober/sense"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docs(sentences ...string) corpus.Source {
	out := make([]corpus.Document, len(sentences))
	for i, s := range sentences {
		out[i] = corpus.Document{
			Title:      s,
			Paragraphs: []corpus.Paragraph{{Sentences: []corpus.Sentence{{Tokens: strings.Fields(s)}}}},
		}
	}
	return corpus.NewSliceSource(out)
}

func openWorkspace(t *testing.T, m MetricsCollector) *Workspace {
	t.Helper()
	ws, err := Open(t.TempDir(),
		WithWidth(4),
		WithMinCount(2),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithMetrics(m),
		WithGraph(3, 2, 2),
	)
	require.NoError(t, err)
	return ws
}

func writeClusters(t *testing.T, ws *Workspace, recs ...graph.Record) {
	t.Helper()
	dir := filepath.Join(ws.ClustersPath(), "00001")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	var buf bytes.Buffer
	w := graph.NewWriter(&buf)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Flush())
	require.NoError(t, os.WriteFile(filepath.Join(dir, sense.ClustersFile), buf.Bytes(), 0o644))
}

func TestWorkspacePipeline(t *testing.T) {
	ctx := context.Background()
	m := &BasicMetricsCollector{}
	ws := openWorkspace(t, m)

	res, err := ws.AddDocuments(ctx, "news", docs("the bank of the river", "the bank lends", "river water"))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Batches)
	assert.Equal(t, 3, res.Documents)
	assert.DirExists(t, filepath.Join(ws.Dir(), "documents", "news", "00001", "0001"))

	tokens, upd, err := ws.UpdateTokens(ctx, "news", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"<PAD>", "<UNK>", "the", "bank", "river"}, tokens.Symbols())
	assert.Equal(t, 5, upd.Symbols)
	assert.Equal(t, 0, upd.Transferred)
	assert.Equal(t, 1, upd.Location.ContentVersion)
	assert.Equal(t, 1, upd.Location.VectorsVersion)
	assert.Equal(t, 4, tokens.Width())
	bank, ok := tokens.Vector("bank")
	require.True(t, ok)

	_, err = ws.AddDocuments(ctx, "news", docs("money bank money", "money"))
	require.NoError(t, err)

	tokens, upd, err = ws.UpdateTokens(ctx, "news", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"<PAD>", "<UNK>", "bank", "money", "the", "river"}, tokens.Symbols())
	assert.Equal(t, 5, upd.Transferred)
	assert.Equal(t, 2, upd.Location.ContentVersion)
	again, ok := tokens.Vector("bank")
	require.True(t, ok)
	assert.Equal(t, bank, again, "known tokens keep their vectors")

	near, err := ws.Similar(tokens, "bank", 2)
	require.NoError(t, err)
	assert.Len(t, near, 2)

	loc, st, err := ws.ExportGraph(ctx, dictionary.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, loc.ContentVersion)
	assert.Equal(t, 1, loc.GraphVersion)
	assert.Equal(t, 6, st.Nodes)
	assert.Equal(t, 18, st.Edges)

	found, err := ws.Graph(0, 0)
	require.NoError(t, err)
	assert.Equal(t, loc, found)

	id := func(sym string) int32 { return int32(tokens.Encode(sym)) }
	writeClusters(t, ws,
		graph.Record{ID: id("bank"), Marker: 0, Edges: []graph.Edge{{Neighbor: id("river"), Weight: 1}, {Neighbor: id("money"), Weight: 1}}},
		graph.Record{ID: id("bank"), Marker: 1, Edges: []graph.Edge{{Neighbor: id("the"), Weight: 2}}},
	)

	senses, ps, err := ws.PoolSenses(ctx, dictionary.LoadOptions{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, ps.Senses)
	assert.Equal(t, []string{"bank#0", "bank#1"}, senses.SensesForToken("bank"))

	loaded, err := ws.Senses(ctx, dictionary.LoadOptions{})
	require.NoError(t, err)
	the, _ := tokens.Vector("the")
	got, ok := loaded.Vector("bank#1")
	require.True(t, ok)
	assert.InDeltaSlice(t, the, got, 1e-6)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.IngestCount)
	assert.Equal(t, int64(5), stats.DocumentsAdded)
	assert.Equal(t, int64(3), stats.SaveCount)
	assert.Equal(t, int64(1), stats.ExportCount)
	assert.Equal(t, int64(18), stats.EdgesExported)
	assert.Equal(t, int64(1), stats.SimilarCount)
}

func TestWorkspacePublish(t *testing.T) {
	ctx := context.Background()
	ws := openWorkspace(t, nil)

	_, err := ws.AddDocuments(ctx, "news", docs("a b a b", "c"))
	require.NoError(t, err)
	_, _, err = ws.UpdateTokens(ctx, "news", 0)
	require.NoError(t, err)

	dst := blobstore.NewMemoryStore()
	man, err := ws.Publish(ctx, dst, filepath.Join("tokens", "00001"), "", blobstore.WithConcurrency(2))
	require.NoError(t, err)

	var names []string
	for _, f := range man.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"counts.vocab", "vectors/0001/vectors.npy"}, names)
	_, ok := dst.Bytes("tokens/00001/" + blobstore.ManifestName)
	assert.True(t, ok)

	_, err = ws.Publish(ctx, dst, t.TempDir(), "")
	assert.Error(t, err)

	man, err = ws.Publish(ctx, dst, ws.TokensPath(), "backup/tokens")
	require.NoError(t, err)
	assert.Len(t, man.Files, 2)
	_, ok = dst.Bytes("backup/tokens/00001/counts.vocab")
	assert.True(t, ok)
}

func TestWorkspaceLayout(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "vectors")
	ws, err := Open(dir, WithLayout(Layout{Documents: "corpora", Tokens: abs, Senses: "s"}))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "corpora", "news"), ws.DocumentsPath("news"))
	assert.Equal(t, abs, ws.TokensPath())
	assert.Equal(t, filepath.Join(dir, "s"), ws.SensesPath())
	assert.Equal(t, filepath.Join(dir, "s", "clusters"), ws.ClustersPath())

	ws, err = Open(dir, WithLayout(Layout{Clusters: "runs"}))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "runs"), ws.ClustersPath())
	assert.Equal(t, filepath.Join(dir, "documents"), ws.DocumentsPath(""))
}

func TestWorkspaceErrors(t *testing.T) {
	ctx := context.Background()
	m := &BasicMetricsCollector{}
	ws := openWorkspace(t, m)

	_, _, err := ws.UpdateTokens(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	_, _, err = ws.ExportGraph(ctx, dictionary.LoadOptions{})
	assert.ErrorIs(t, err, ErrVersionNotFound)

	_, err = ws.Tokens(ctx, dictionary.LoadOptions{ContentVersion: 3})
	assert.ErrorIs(t, err, ErrVersionNotFound)

	_, err = ws.AddDocuments(ctx, "news", docs("x y x y"))
	require.NoError(t, err)
	tokens, _, err := ws.UpdateTokens(ctx, "news", 0)
	require.NoError(t, err)

	_, _, err = ws.PoolSenses(ctx, dictionary.LoadOptions{}, 0)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	near, err := ws.Similar(tokens, "nope", 2)
	assert.NoError(t, err)
	assert.Empty(t, near)

	loc, _, err := ws.ExportGraph(ctx, dictionary.LoadOptions{})
	require.NoError(t, err)
	_, err = ws.Cluster(ctx, sense.NewRunner(filepath.Join(t.TempDir(), "no-such-clusterer"), nil), loc)
	assert.Error(t, err)
	assert.Equal(t, int64(1), m.GetStats().ClusterErrors)
}
