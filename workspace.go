package ober

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/ober/blobstore"
	"github.com/hupe1980/ober/corpus"
	"github.com/hupe1980/ober/dictionary"
	"github.com/hupe1980/ober/graph"
	"github.com/hupe1980/ober/internal/fs"
	"github.com/hupe1980/ober/sense"
)

// Tier directories under a workspace.
const (
	DocumentsDir = "documents"
	TokensDir    = "tokens"
	SensesDir    = "senses"
	ClustersDir  = "clusters"
)

// Workspace ties the artifact tiers together under one directory.
type Workspace struct {
	dir  string
	opts options
	rng  *rand.Rand
}

// Open opens the workspace at dir, creating the directory if needed. Tier
// directories are created lazily by the first write into them.
func Open(dir string, opts ...Option) (*Workspace, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	dir = filepath.Clean(dir)
	if err := o.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ober: create workspace %s: %w", dir, err)
	}
	rng := o.rng
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Workspace{dir: dir, opts: o, rng: rng}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

func (w *Workspace) tier(override, def string) string {
	switch {
	case override == "":
		return filepath.Join(w.dir, def)
	case filepath.IsAbs(override):
		return filepath.Clean(override)
	default:
		return filepath.Join(w.dir, override)
	}
}

// DocumentsPath returns the corpus root of a document set.
func (w *Workspace) DocumentsPath(set string) string {
	return filepath.Join(w.tier(w.opts.layout.Documents, DocumentsDir), set)
}

// TokensPath returns the token dictionary root.
func (w *Workspace) TokensPath() string { return w.tier(w.opts.layout.Tokens, TokensDir) }

// SensesPath returns the sense dictionary root.
func (w *Workspace) SensesPath() string { return w.tier(w.opts.layout.Senses, SensesDir) }

// ClustersPath returns the cluster store root.
func (w *Workspace) ClustersPath() string {
	if w.opts.layout.Clusters == "" {
		return filepath.Join(w.SensesPath(), ClustersDir)
	}
	return w.tier(w.opts.layout.Clusters, "")
}

func (w *Workspace) corpusOptions(contentVersion int) []corpus.Option {
	opts := []corpus.Option{
		corpus.WithFileSystem(w.opts.fs),
		corpus.WithLogger(w.opts.logger.WithTier(DocumentsDir).Logger),
		corpus.WithCodec(w.opts.codec),
		corpus.WithCompression(w.opts.compression),
		corpus.WithBatchSize(w.opts.batchSize),
		corpus.WithWriteLimit(w.opts.writeLimit),
		corpus.WithRand(w.rng),
	}
	if contentVersion > 0 {
		opts = append(opts, corpus.WithContentVersion(contentVersion))
	}
	return opts
}

func (w *Workspace) dictionaryOptions(tier string) []dictionary.Option {
	return []dictionary.Option{
		dictionary.WithFileSystem(w.opts.fs),
		dictionary.WithLogger(w.opts.logger.WithTier(tier).Logger),
		dictionary.WithMmap(w.opts.mmap),
	}
}

// AddDocuments appends the documents of src to the latest content version of
// a document set, creating the set on first use.
func (w *Workspace) AddDocuments(ctx context.Context, set string, src corpus.Source) (corpus.AddResult, error) {
	start := time.Now()
	res, err := w.addDocuments(ctx, set, src)
	w.opts.metrics.RecordDocumentsAdded(len(res.Batches), res.Documents, time.Since(start), err)
	w.opts.logger.LogBatchCommit(ctx, set, len(res.Batches), res.Documents, err)
	return res, err
}

func (w *Workspace) addDocuments(ctx context.Context, set string, src corpus.Source) (corpus.AddResult, error) {
	store, err := corpus.Open(w.DocumentsPath(set), w.corpusOptions(0)...)
	if err != nil {
		return corpus.AddResult{}, err
	}
	return store.AddDocuments(ctx, src)
}

// Documents opens a document set for reading. Zero selects the latest
// content version.
func (w *Workspace) Documents(set string, contentVersion int) (*corpus.Store, error) {
	return corpus.Load(w.DocumentsPath(set), w.corpusOptions(contentVersion)...)
}

// Tokens loads the token dictionary.
func (w *Workspace) Tokens(ctx context.Context, lo dictionary.LoadOptions) (*dictionary.Store, error) {
	return w.load(ctx, w.TokensPath(), dictionary.TokenSchema, lo)
}

// Senses loads the sense dictionary.
func (w *Workspace) Senses(ctx context.Context, lo dictionary.LoadOptions) (*dictionary.Store, error) {
	return w.load(ctx, w.SensesPath(), dictionary.SenseSchema, lo)
}

func (w *Workspace) load(ctx context.Context, root string, schema dictionary.Schema, lo dictionary.LoadOptions) (*dictionary.Store, error) {
	s, err := dictionary.Load(root, schema, lo, w.dictionaryOptions(schema.Name)...)
	if errors.Is(err, ErrVersionNotFound) {
		w.opts.logger.DebugContext(ctx, "nothing to load", "schema", schema.Name, "root", root)
		return nil, err
	}
	if err != nil {
		w.opts.logger.LogLoad(ctx, schema.Name, lo.ContentVersion, lo.VectorsVersion, 0, err)
		return nil, err
	}
	loc := s.Location()
	w.opts.logger.LogLoad(ctx, schema.Name, loc.ContentVersion, loc.VectorsVersion, s.Len(), nil)
	return s, nil
}

// SaveTokens persists a token dictionary, typically after training wrote new
// vectors into it.
func (w *Workspace) SaveTokens(ctx context.Context, s *dictionary.Store, so dictionary.SaveOptions) (dictionary.Location, error) {
	return w.save(ctx, w.TokensPath(), s, so)
}

func (w *Workspace) save(ctx context.Context, root string, s *dictionary.Store, so dictionary.SaveOptions) (dictionary.Location, error) {
	start := time.Now()
	loc, err := s.Save(root, so)
	w.opts.metrics.RecordVectorsSave(s.Len(), time.Since(start), err)
	w.opts.logger.LogVectorsSave(ctx, s.Schema().Name, loc.ContentVersion, loc.VectorsVersion, err)
	return loc, err
}

// UpdateResult describes an UpdateTokens call.
type UpdateResult struct {
	Location dictionary.Location
	// Symbols is the size of the new vocabulary, reserved symbols included.
	Symbols int
	// Transferred counts vectors copied over from the previous dictionary.
	Transferred int
}

// UpdateTokens rebuilds the token vocabulary from the token counts of a
// document set. Tokens seen fewer than the configured minimum are dropped
// and the rest are ordered by frequency. Tokens the latest dictionary already
// knows keep their vectors; new ones start random. The result is saved as a
// new token content version.
func (w *Workspace) UpdateTokens(ctx context.Context, set string, corpusVersion int) (*dictionary.Store, UpdateResult, error) {
	var res UpdateResult
	docs, err := w.Documents(set, corpusVersion)
	if err != nil {
		return nil, res, err
	}
	counts, err := docs.CountTokens(ctx, corpus.All())
	if err != nil {
		return nil, res, err
	}
	sorted := dictionary.SortCounts(counts, w.opts.minCount)

	old, err := w.Tokens(ctx, dictionary.LoadOptions{})
	switch {
	case errors.Is(err, ErrVersionNotFound):
		old = dictionary.New(dictionary.TokenSchema, w.opts.width, w.dictionaryOptions(TokensDir)...)
	case err != nil:
		return nil, res, err
	}

	tokens, transferred := dictionary.Rebuild(old, sorted, w.rng, w.dictionaryOptions(TokensDir)...)
	w.opts.logger.InfoContext(ctx, "token vocabulary rebuilt",
		"document_set", set,
		"corpus_version", docs.ContentVersion(),
		"symbols", tokens.Len(),
		"transferred", transferred,
	)

	loc, err := w.SaveTokens(ctx, tokens, dictionary.SaveOptions{NewContentVersion: true})
	if err != nil {
		return nil, res, err
	}
	res = UpdateResult{Location: loc, Symbols: tokens.Len(), Transferred: transferred}
	return tokens, res, nil
}

// Similar returns the k nearest neighbors of sym in s by cosine similarity.
func (w *Workspace) Similar(s *dictionary.Store, sym string, k int) ([]dictionary.Neighbor, error) {
	start := time.Now()
	out, err := s.MostSimilar(sym, k)
	w.opts.metrics.RecordSimilarity(k, time.Since(start), err)
	return out, err
}

func (w *Workspace) graphOptions(graphVersion int) []graph.Option {
	return []graph.Option{
		graph.WithFileSystem(w.opts.fs),
		graph.WithLogger(w.opts.logger.WithTier("graph").Logger),
		graph.WithNeighbors(w.opts.neighbors),
		graph.WithBatchSize(w.opts.graphBatch),
		graph.WithWorkers(w.opts.workers),
		graph.WithGraphVersion(graphVersion),
	}
}

// ExportGraph exports the similarity graph of a stored token dictionary into
// the next graph version of its content version.
func (w *Workspace) ExportGraph(ctx context.Context, lo dictionary.LoadOptions) (graph.Location, graph.Stats, error) {
	tokens, err := w.Tokens(ctx, lo)
	if err != nil {
		return graph.Location{}, graph.Stats{}, err
	}
	loc, st, err := graph.ExportVersion(ctx, tokens, w.graphOptions(0)...)
	w.opts.metrics.RecordGraphExport(st.Nodes, st.Edges, st.Duration, err)
	w.opts.logger.LogGraphExport(ctx, loc.Path, st.Nodes, st.Edges, st.Duration, err)
	return loc, st, err
}

// Graph finds a stored graph. Zero versions select the latest.
func (w *Workspace) Graph(contentVersion, graphVersion int) (graph.Location, error) {
	return graph.Resolve(w.TokensPath(), contentVersion, graphVersion, w.graphOptions(0)...)
}

func (w *Workspace) clusters() (*sense.ClusterStore, error) {
	return sense.OpenClusters(w.ClustersPath(),
		sense.WithFileSystem(w.opts.fs),
		sense.WithLogger(w.opts.logger.WithTier(SensesDir).Logger),
	)
}

// Cluster runs the external clusterer on a stored graph and commits its
// output as a new cluster version.
func (w *Workspace) Cluster(ctx context.Context, r *sense.Runner, g graph.Location) (sense.RunResult, error) {
	clusters, err := w.clusters()
	if err != nil {
		return sense.RunResult{}, err
	}
	res, err := r.Run(ctx, g.Path, clusters)
	w.opts.metrics.RecordClusterRun(res.Duration, err)
	w.opts.logger.LogClusterRun(ctx, res.ClusterVersion, res.Duration, err)
	return res, err
}

// PoolSenses builds the sense dictionary from a cluster version and the token
// vectors selected by lo, and saves it as a new sense content version. Zero
// selects the latest cluster version.
func (w *Workspace) PoolSenses(ctx context.Context, lo dictionary.LoadOptions, clusterVersion int) (*dictionary.Store, sense.PoolStats, error) {
	var st sense.PoolStats
	tokens, err := w.Tokens(ctx, lo)
	if err != nil {
		return nil, st, err
	}
	clusters, err := w.clusters()
	if err != nil {
		return nil, st, err
	}
	cv, path, err := clusters.Resolve(clusterVersion)
	if err != nil {
		return nil, st, err
	}
	f, err := fs.Open(w.opts.fs, path)
	if err != nil {
		return nil, st, fmt.Errorf("ober: open clusters: %w", err)
	}
	defer f.Close()

	senses, st, err := sense.Pool(tokens, graph.Records(f), tokens.Width(), w.dictionaryOptions(SensesDir)...)
	if err != nil {
		return nil, st, err
	}
	w.opts.logger.InfoContext(ctx, "senses pooled",
		"cluster_version", cv,
		"senses", st.Senses,
		"members", st.Members,
		"unweighted", st.Unweighted,
	)
	if _, err := w.save(ctx, w.SensesPath(), senses, dictionary.SaveOptions{NewContentVersion: true}); err != nil {
		return nil, st, err
	}
	return senses, st, nil
}

// Publish uploads the committed version directory dir to dst beneath
// prefix. A relative dir is resolved against the workspace. An empty prefix
// uses dir's slash-separated path relative to the workspace, which then must
// lie inside it.
func (w *Workspace) Publish(ctx context.Context, dst blobstore.BlobStore, dir, prefix string, opts ...blobstore.Option) (*blobstore.Manifest, error) {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(w.dir, dir)
	}
	if prefix == "" {
		rel, err := filepath.Rel(w.dir, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("ober: publish %s: no prefix for a directory outside the workspace", dir)
		}
		prefix = filepath.ToSlash(rel)
	}
	opts = append([]blobstore.Option{
		blobstore.WithFileSystem(w.opts.fs),
		blobstore.WithCodec(w.opts.codec),
		blobstore.WithLogger(w.opts.logger.WithTier("publish").Logger),
	}, opts...)
	return blobstore.Publish(ctx, dst, dir, prefix, opts...)
}
