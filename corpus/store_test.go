package corpus

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/ober/codec"
	"github.com/hupe1980/ober/internal/compression"
	"github.com/hupe1980/ober/internal/fs"
	"github.com/hupe1980/ober/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(title string, sentences ...string) Document {
	p := Paragraph{}
	for _, s := range sentences {
		p.Sentences = append(p.Sentences, Sentence{Tokens: strings.Fields(s)})
	}
	return Document{Title: title, Paragraphs: []Paragraph{p}}
}

func titles(t *testing.T, s *Store, sel Selector) []string {
	t.Helper()
	var out []string
	for d, err := range s.Documents(sel) {
		require.NoError(t, err)
		out = append(out, d.Title)
	}
	return out
}

func TestAddDocuments_SplitsIntoBatches(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, WithBatchSize(2))
	require.NoError(t, err)

	res, err := s.AddDocuments(context.Background(), NewSliceSource([]Document{
		doc("A", "a b"),
		doc("B", "c d"),
		doc("C", "e f"),
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Batches)
	assert.Equal(t, 3, res.Documents)
	assert.Equal(t, 3, res.Sentences)
	assert.Positive(t, res.Bytes)

	st, err := s.BatchStats(1)
	require.NoError(t, err)
	assert.Equal(t, BatchStats{TotalSentences: 2, Documents: 2}, st)
	st, err = s.BatchStats(2)
	require.NoError(t, err)
	assert.Equal(t, BatchStats{TotalSentences: 1, Documents: 1}, st)
	assert.Equal(t, 3, s.TotalSentences())

	assert.FileExists(t, filepath.Join(root, "00001", "0001", "data.jl.zst"))
	assert.FileExists(t, filepath.Join(root, "00001", "0002", "stats.json"))

	r, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(t, r, Batch(1)))
	assert.Equal(t, []string{"C"}, titles(t, r, Batch(2)))
	assert.Equal(t, []string{"A", "B", "C"}, titles(t, r, All()))
	assert.Equal(t, 3, r.TotalSentences())
	assert.Equal(t, 3, r.TotalDocuments())
	assert.Equal(t, 2, r.NumBatches())
}

func TestAddDocuments_ExactMultipleHasNoEmptyBatch(t *testing.T) {
	for _, k := range []int{1, 2, 3} {
		s, err := Open(t.TempDir(), WithBatchSize(2))
		require.NoError(t, err)

		var docs []Document
		for i := range 2 * k {
			docs = append(docs, doc(string(rune('a'+i)), "x"))
		}
		res, err := s.AddDocuments(context.Background(), NewSliceSource(docs))
		require.NoError(t, err)
		assert.Len(t, res.Batches, k)
		assert.Equal(t, k, s.NumBatches())

		entries, err := os.ReadDir(s.Dir())
		require.NoError(t, err)
		assert.Len(t, entries, k, "no staging file may survive")
	}
}

func TestAddDocuments_SkipsBatchWithoutSentences(t *testing.T) {
	s, err := Open(t.TempDir(), WithBatchSize(2))
	require.NoError(t, err)

	res, err := s.AddDocuments(context.Background(), NewSliceSource([]Document{
		doc("A", "a"),
		doc("B", "b"),
		{Title: "empty-1"},
		{Title: "empty-2"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Batches)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, 1, s.NumBatches())
}

func TestAddDocuments_AppendsToExistingBatches(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, WithBatchSize(1))
	require.NoError(t, err)
	_, err = s.AddDocuments(context.Background(), NewSliceSource([]Document{doc("A", "a")}))
	require.NoError(t, err)

	s, err = Open(root, WithBatchSize(1))
	require.NoError(t, err)
	res, err := s.AddDocuments(context.Background(), NewSliceSource([]Document{doc("B", "b")}))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Batches)
	assert.Equal(t, []string{"A", "B"}, titles(t, s, All()))
}

func TestAddDocuments_InterruptedCommitLeavesNoBatch(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, WithBatchSize(2))
	require.NoError(t, err)
	_, err = s.AddDocuments(context.Background(), NewSliceSource([]Document{doc("A", "a"), doc("B", "b")}))
	require.NoError(t, err)

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(PayloadBase, fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	w, err := Open(root, WithBatchSize(2), WithFileSystem(ffs))
	require.NoError(t, err)

	_, err = w.AddDocuments(context.Background(), NewSliceSource([]Document{doc("C", "c")}))
	assert.ErrorIs(t, err, fs.ErrInjected)

	r, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, r.Batches())
	assert.Equal(t, 2, r.TotalSentences())

	entries, err := os.ReadDir(r.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, fs.IsTemp(e.Name()), "unexpected staging file %s", e.Name())
	}
}

func TestAddDocuments_WriteFaultDiscardsStaging(t *testing.T) {
	root := t.TempDir()
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(stagingPrefix, fs.Fault{FailAfterBytes: 0})

	s, err := Open(root, WithFileSystem(ffs), WithCompression(compression.None))
	require.NoError(t, err)

	_, err = s.AddDocuments(context.Background(), NewSliceSource([]Document{doc("A", "a")}))
	assert.ErrorIs(t, err, fs.ErrInjected)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpen_RecoversFromCrash(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	_, err = s.AddDocuments(context.Background(), NewSliceSource([]Document{doc("A", "a")}))
	require.NoError(t, err)

	// A crash after staging, and one after allocating a batch index.
	stray := filepath.Join(s.Dir(), ".batch-42.tmp")
	require.NoError(t, os.WriteFile(stray, []byte("partial"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(s.Dir(), "0002"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "0002", StatsFile), []byte(`{"total_sentences":9}`), 0o644))

	r, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, r.Batches())
	assert.Equal(t, 1, r.TotalSentences())
	assert.FileExists(t, stray, "readers never touch staging files")

	w, err := Open(root)
	require.NoError(t, err)
	assert.NoFileExists(t, stray)

	res, err := w.AddDocuments(context.Background(), NewSliceSource([]Document{doc("B", "b")}))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, res.Batches)
	assert.Equal(t, []string{"A", "B"}, titles(t, w, All()))
}

func TestLoad_MissingStatsIsCorrupt(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	_, err = s.AddDocuments(context.Background(), NewSliceSource([]Document{doc("A", "a")}))
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(s.Dir(), "0001", StatsFile)))
	_, err = Load(root)
	assert.ErrorIs(t, err, ErrCorruptArtifact)

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "0001", StatsFile), []byte("{oops"), 0o644))
	_, err = Load(root)
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestLoad_FailsFast(t *testing.T) {
	root := filepath.Join(t.TempDir(), "documents")
	_, err := Load(root)
	assert.ErrorIs(t, err, version.ErrVersionNotFound)
	assert.NoDirExists(t, root)

	_, err = Open(root)
	require.NoError(t, err)
	_, err = Load(root, WithContentVersion(7))
	assert.ErrorIs(t, err, version.ErrVersionNotFound)

	r, err := Load(root)
	require.NoError(t, err)
	_, err = r.AddDocuments(context.Background(), NewSliceSource(nil))
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestDocumentSetAndContentVersions(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, WithDocumentSet("trigrams"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.ContentVersion())
	_, err = s.AddDocuments(context.Background(), NewSliceSource([]Document{doc("old", "a")}))
	require.NoError(t, err)

	s2, err := Open(root, WithDocumentSet("trigrams"), WithNewContentVersion())
	require.NoError(t, err)
	assert.Equal(t, 2, s2.ContentVersion())
	_, err = s2.AddDocuments(context.Background(), NewSliceSource([]Document{doc("new", "b")}))
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "trigrams", "00002", "0001"))

	latest, err := Load(root, WithDocumentSet("trigrams"))
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, titles(t, latest, All()))

	first, err := Load(root, WithDocumentSet("trigrams"), WithContentVersion(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, titles(t, first, All()))
}

func TestSelectors(t *testing.T) {
	s, err := Open(t.TempDir(), WithBatchSize(1), WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	_, err = s.AddDocuments(context.Background(), NewSliceSource([]Document{
		doc("A", "a"), doc("B", "b"), doc("C", "c"),
	}))
	require.NoError(t, err)

	for range 10 {
		got := titles(t, s, Random())
		require.Len(t, got, 1)
		assert.Contains(t, []string{"A", "B", "C"}, got[0])
	}

	var errs int
	for _, err := range s.Documents(Batch(9)) {
		assert.ErrorIs(t, err, ErrBatchNotFound)
		errs++
	}
	assert.Equal(t, 1, errs)

	_, err = s.BatchStats(9)
	assert.ErrorIs(t, err, ErrBatchNotFound)

	empty, err := Open(t.TempDir())
	require.NoError(t, err)
	for _, err := range empty.Documents(Random()) {
		assert.ErrorIs(t, err, ErrBatchNotFound)
	}
	assert.Empty(t, titles(t, empty, All()))
}

func TestProjections(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	_, err = s.AddDocuments(context.Background(), NewSliceSource([]Document{
		{Title: "A", Paragraphs: []Paragraph{
			{Sentences: []Sentence{{Tokens: []string{"the", "cat"}}, {Tokens: []string{"sat"}}}},
			{Sentences: []Sentence{{Tokens: []string{"the", "end"}}}},
		}},
	}))
	require.NoError(t, err)

	var paragraphs int
	for _, err := range s.Paragraphs(All()) {
		require.NoError(t, err)
		paragraphs++
	}
	assert.Equal(t, 2, paragraphs)

	var sentences [][]string
	for tokens, err := range s.Sentences(All()) {
		require.NoError(t, err)
		sentences = append(sentences, tokens)
	}
	assert.Equal(t, [][]string{{"the", "cat"}, {"sat"}, {"the", "end"}}, sentences)

	// Early exit must not yield further values.
	n := 0
	for range s.Sentences(All()) {
		n++
		break
	}
	assert.Equal(t, 1, n)

	counts, err := s.CountTokens(context.Background(), All())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"the": 2, "cat": 1, "sat": 1, "end": 1}, counts)
}

func TestCompressionAndCodecOptions(t *testing.T) {
	for _, k := range []compression.Kind{compression.None, compression.Gzip, compression.LZ4} {
		t.Run(k.String(), func(t *testing.T) {
			root := t.TempDir()
			s, err := Open(root, WithCompression(k), WithCodec(codec.JSON{}), WithWriteLimit(1<<30))
			require.NoError(t, err)
			_, err = s.AddDocuments(context.Background(), NewSliceSource([]Document{doc("A", "a b c")}))
			require.NoError(t, err)
			assert.FileExists(t, filepath.Join(s.Dir(), "0001", PayloadBase+k.Extension()))

			r, err := Load(root)
			require.NoError(t, err)
			assert.Equal(t, []string{"A"}, titles(t, r, All()))
		})
	}

	_, err := Open(t.TempDir(), WithCompression(compression.Bzip2))
	assert.ErrorIs(t, err, compression.ErrUnsupported)
}

func TestCorruptPayload(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, WithCompression(compression.None))
	require.NoError(t, err)
	_, err = s.AddDocuments(context.Background(), NewSliceSource([]Document{doc("A", "a")}))
	require.NoError(t, err)

	payload := filepath.Join(s.Dir(), "0001", PayloadBase)
	require.NoError(t, os.WriteFile(payload, []byte("{\"title\":\"A\",\"paragraphs\":[]}\nnot json\n"), 0o644))

	r, err := Load(root)
	require.NoError(t, err)
	var got []string
	var lastErr error
	for d, err := range r.Documents(All()) {
		if err != nil {
			lastErr = err
			continue
		}
		got = append(got, d.Title)
	}
	assert.Equal(t, []string{"A"}, got)
	assert.ErrorIs(t, lastErr, ErrCorruptArtifact)
}

func TestAddDocuments_SourceError(t *testing.T) {
	s, err := Open(t.TempDir(), WithBatchSize(1))
	require.NoError(t, err)

	boom := errors.New("tokenizer crashed")
	calls := 0
	src := SourceFunc(func() (Document, bool, error) {
		calls++
		if calls == 2 {
			return Document{}, false, boom
		}
		return doc("A", "a"), true, nil
	})

	res, err := s.AddDocuments(context.Background(), src)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, res.Batches, "batches committed before the failure stay committed")
}

func TestAddDocuments_Canceled(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.AddDocuments(ctx, NewSliceSource([]Document{doc("A", "a")}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.NumBatches())
}
