package dictionary

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/ober/internal/fs"
	"github.com/hupe1980/ober/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenFixture(t *testing.T) *Store {
	t.Helper()
	s := New(TokenSchema, 4)
	s.AddSymbol("cat", 5)
	s.AddSymbol("dog", 2)
	s.AddSymbol("cat", 3)
	s.GenerateRandomVectors(rand.New(rand.NewPCG(1, 1)))
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tokens")
	s := tokenFixture(t)

	loc, err := s.Save(root, SaveOptions{NewContentVersion: true})
	require.NoError(t, err)
	assert.Equal(t, Location{Root: root, ContentVersion: 1, VectorsVersion: 1}, loc)
	assert.FileExists(t, filepath.Join(root, "00001", "counts.vocab"))
	assert.FileExists(t, filepath.Join(root, "00001", "vectors", "0001", "vectors.npy"))

	vocab, err := os.ReadFile(filepath.Join(root, "00001", "counts.vocab"))
	require.NoError(t, err)
	assert.Equal(t, "4\n<PAD>\t1000\n<UNK>\t1000\ncat\t8\ndog\t2\n", string(vocab))

	for _, mapped := range []bool{true, false} {
		got, err := Load(root, TokenSchema, LoadOptions{}, WithMmap(mapped))
		require.NoError(t, err)
		assert.Equal(t, s.Symbols(), got.Symbols())
		assert.Equal(t, 8, got.Frequency("cat"))
		assert.Equal(t, ReservedFrequency, got.Frequency(PadSymbol))
		assert.Equal(t, 4, got.Width())
		assert.Equal(t, s.Vectors(), got.Vectors())
		assert.Equal(t, loc, got.Location())
	}
}

func TestSenseSchemaFile(t *testing.T) {
	root := t.TempDir()
	s := New(SenseSchema, 2)
	s.AddSymbols("bank#0", "bank#1")
	s.GenerateZeroVectors()

	_, err := s.Save(root, SaveOptions{NewContentVersion: true})
	require.NoError(t, err)

	vocab, err := os.ReadFile(filepath.Join(root, "00001", "inventory.vocab"))
	require.NoError(t, err)
	assert.Equal(t, "2\n<UNK>\nbank#0\nbank#1\n", string(vocab))

	got, err := Load(root, SenseSchema, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bank#0", "bank#1"}, got.SensesForToken("bank"))
}

func TestSaveVersionAxes(t *testing.T) {
	root := t.TempDir()
	s := tokenFixture(t)

	_, err := s.Save(root, SaveOptions{NewContentVersion: true})
	require.NoError(t, err)
	vocabPath := filepath.Join(root, "00001", "counts.vocab")
	info, err := os.Stat(vocabPath)
	require.NoError(t, err)

	// Retrain vectors only.
	s.GenerateZeroVectors()
	loc, err := s.Save(root, SaveOptions{NewVectorsVersion: true})
	require.NoError(t, err)
	assert.Equal(t, 1, loc.ContentVersion)
	assert.Equal(t, 2, loc.VectorsVersion)

	after, err := os.Stat(vocabPath)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime(), "vocabulary must not be rewritten")

	latest, err := Load(root, TokenSchema, LoadOptions{})
	require.NoError(t, err)
	v, _ := latest.Vector("cat")
	assert.Equal(t, []float32{0, 0, 0, 0}, v)

	first, err := Load(root, TokenSchema, LoadOptions{VectorsVersion: 1})
	require.NoError(t, err)
	v, _ = first.Vector("cat")
	assert.NotEqual(t, []float32{0, 0, 0, 0}, v)

	// Nothing requested: no new files.
	loc, err = s.Save(root, SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, loc.VectorsVersion)

	// Regrown vocabulary cannot be saved as a vectors-only version.
	s.AddSymbol("fish", 1)
	_, err = s.Save(root, SaveOptions{NewVectorsVersion: true})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	loc, err = s.Save(root, SaveOptions{NewContentVersion: true})
	require.NoError(t, err)
	assert.Equal(t, Location{Root: root, ContentVersion: 2, VectorsVersion: 1}, loc)
}

func TestSaveErrors(t *testing.T) {
	root := t.TempDir()

	s := New(TokenSchema, 2)
	_, err := s.Save(root, SaveOptions{NewContentVersion: true})
	assert.ErrorIs(t, err, ErrNoVectors)

	s.AddSymbol("tab\tbed", 1)
	s.GenerateZeroVectors()
	_, err = s.Save(root, SaveOptions{NewContentVersion: true})
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}

func TestSaveInterruptedVectorsWrite(t *testing.T) {
	root := t.TempDir()
	s := tokenFixture(t)
	_, err := s.Save(root, SaveOptions{NewContentVersion: true})
	require.NoError(t, err)

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(VectorsFile, fs.Fault{FailAfterBytes: -1, FailOnRename: true})
	loaded, err := Load(root, TokenSchema, LoadOptions{}, WithFileSystem(ffs))
	require.NoError(t, err)
	loaded.GenerateZeroVectors()

	_, err = loaded.Save(root, SaveOptions{NewVectorsVersion: true})
	assert.ErrorIs(t, err, fs.ErrInjected)

	// The allocated slot has no vectors, so latest still resolves to version 1.
	got, err := Load(root, TokenSchema, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Location().VectorsVersion)
	assert.Equal(t, s.Vectors(), got.Vectors())
}

func TestSaveInterruptedContentVersion(t *testing.T) {
	for _, file := range []string{VectorsFile, TokenSchema.VocabFile} {
		t.Run(file, func(t *testing.T) {
			root := t.TempDir()
			s := tokenFixture(t)
			_, err := s.Save(root, SaveOptions{NewContentVersion: true})
			require.NoError(t, err)

			ffs := fs.NewFaultyFS(nil)
			ffs.AddRule(file, fs.Fault{FailAfterBytes: -1, FailOnRename: true})
			loaded, err := Load(root, TokenSchema, LoadOptions{}, WithFileSystem(ffs))
			require.NoError(t, err)
			loaded.AddSymbol("fish", 4)

			_, err = loaded.Save(root, SaveOptions{NewContentVersion: true})
			assert.ErrorIs(t, err, fs.ErrInjected)
			assert.NoFileExists(t, filepath.Join(root, "00002", TokenSchema.VocabFile))

			// Version 2 was never committed, so latest is still version 1.
			got, err := Load(root, TokenSchema, LoadOptions{})
			require.NoError(t, err)
			assert.Equal(t, Location{Root: root, ContentVersion: 1, VectorsVersion: 1}, got.Location())
			assert.Equal(t, s.Symbols(), got.Symbols())
			assert.Equal(t, s.Vectors(), got.Vectors())
		})
	}
}

func TestDirty(t *testing.T) {
	root := t.TempDir()
	s := tokenFixture(t)
	assert.True(t, s.Dirty())

	_, err := s.Save(root, SaveOptions{NewContentVersion: true})
	require.NoError(t, err)
	assert.False(t, s.Dirty())

	s.GenerateZeroVectors()
	assert.True(t, s.Dirty())
	_, err = s.Save(root, SaveOptions{NewVectorsVersion: true})
	require.NoError(t, err)
	assert.False(t, s.Dirty())

	loaded, err := Load(root, TokenSchema, LoadOptions{})
	require.NoError(t, err)
	assert.False(t, loaded.Dirty())
	require.NoError(t, loaded.UpdateVectors(loaded.Vectors()))
	assert.True(t, loaded.Dirty())
}

func TestLoadReadsVectorsThroughFileSystem(t *testing.T) {
	root := t.TempDir()
	_, err := tokenFixture(t).Save(root, SaveOptions{NewContentVersion: true})
	require.NoError(t, err)

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(VectorsFile, fs.Fault{FailAfterBytes: -1, FailOnRead: true})
	_, err = Load(root, TokenSchema, LoadOptions{}, WithFileSystem(ffs), WithMmap(true))
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"), TokenSchema, LoadOptions{})
	assert.ErrorIs(t, err, version.ErrVersionNotFound)

	root := t.TempDir()
	s := tokenFixture(t)
	_, err = s.Save(root, SaveOptions{NewContentVersion: true})
	require.NoError(t, err)

	_, err = Load(root, TokenSchema, LoadOptions{ContentVersion: 4})
	assert.ErrorIs(t, err, version.ErrVersionNotFound)
	_, err = Load(root, TokenSchema, LoadOptions{VectorsVersion: 4})
	assert.ErrorIs(t, err, version.ErrVersionNotFound)

	vocab := filepath.Join(root, "00001", "counts.vocab")
	write := func(content string) {
		require.NoError(t, os.WriteFile(vocab, []byte(content), 0o644))
	}

	write("4\n<PAD>\t1000\n<UNK>\t1000\ncat\tmany\ndog\t2\n")
	_, err = Load(root, TokenSchema, LoadOptions{})
	assert.ErrorIs(t, err, version.ErrCorruptArtifact)

	write("4\n<UNK>\t1000\n<PAD>\t1000\ncat\t8\ndog\t2\n")
	_, err = Load(root, TokenSchema, LoadOptions{})
	assert.ErrorIs(t, err, version.ErrCorruptArtifact)

	write("four\n")
	_, err = Load(root, TokenSchema, LoadOptions{})
	assert.ErrorIs(t, err, version.ErrCorruptArtifact)

	write("4\n<PAD>\t1000\n<UNK>\t1000\ncat\t8\n")
	_, err = Load(root, TokenSchema, LoadOptions{})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	write("4\n<PAD>\t1000\n<UNK>\t1000\ncat\t8\ndog\t2\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "00001", "vectors", "0001", VectorsFile), []byte("garbage"), 0o644))
	_, err = Load(root, TokenSchema, LoadOptions{})
	assert.ErrorIs(t, err, version.ErrCorruptArtifact)
}
