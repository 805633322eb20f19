package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(dir, "missing.yaml"),
		"--documents_path", filepath.Join(dir, "documents"),
		"--tokens_path", filepath.Join(dir, "tokens"),
		"--senses_path", filepath.Join(dir, "senses"),
		"--set", "news",
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OBER_TOKENS_WIDTH", "4")
	t.Setenv("OBER_TOKENS_MIN_COUNT", "1")
	t.Setenv("OBER_GRAPH_NEIGHBORS", "2")
	t.Setenv("OBER_LOG_LEVEL", "error")
	t.Setenv("OBER_PUBLISH_DIR", filepath.Join(dir, "published"))

	input := filepath.Join(dir, "docs.jl")
	lines := []string{
		`{"title":"a","paragraphs":[{"sentences":[{"tokens":["river","bank"]}]}]}`,
		`{"title":"b","paragraphs":[{"sentences":[{"tokens":["money","bank"]},{"tokens":["loan"]}]}]}`,
	}
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	out, err := run(t, dir, "documents", "add", input)
	require.NoError(t, err)
	assert.Contains(t, out, "Added 2 documents (3 sentences) in 1 batches")

	out, err = run(t, dir, "documents", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "content version 1")
	assert.Contains(t, out, "total")

	out, err = run(t, dir, "tokens", "update")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 6 tokens as content version 1")

	out, err = run(t, dir, "tokens", "similar", "bank", "-k", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "bank:")

	out, err = run(t, dir, "graph", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 6 nodes, 12 edges")
	assert.FileExists(t, filepath.Join(dir, "tokens", "00001", "graphs", "0001", "graph.dt"))

	out, err = run(t, dir, "publish", "tokens")
	require.NoError(t, err)
	assert.Contains(t, out, "Published 3 files to tokens/00001")
	assert.FileExists(t, filepath.Join(dir, "published", "tokens", "00001", "MANIFEST.json"))
}

func TestCLIErrors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OBER_LOG_LEVEL", "error")

	_, err := run(t, dir, "tokens", "update")
	assert.Error(t, err)

	_, err = run(t, dir, "publish", "nope")
	assert.Error(t, err)

	t.Setenv("OBER_LOG_FORMAT", "xml")
	_, err = run(t, dir, "documents", "stats")
	assert.ErrorContains(t, err, "log.format")
}
