package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hupe1980/ober"
	"github.com/hupe1980/ober/blobstore"
	"github.com/hupe1980/ober/blobstore/minio"
	"github.com/hupe1980/ober/blobstore/s3"
	"github.com/hupe1980/ober/codec"
	"github.com/hupe1980/ober/corpus"
	"github.com/hupe1980/ober/dictionary"
	"github.com/hupe1980/ober/internal/compression"
	"github.com/hupe1980/ober/internal/config"
	"github.com/hupe1980/ober/sense"
	"github.com/hupe1980/ober/version"
	minioclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
)

// cli holds values shared by all commands. Path and version flags left at
// their zero value fall back to the configuration and to the latest version.
type cli struct {
	configPath    string
	documentsPath string
	tokensPath    string
	sensesPath    string
	clustersPath  string
	set           string

	documentsVersion int
	tokensVersion    int
	vectorsVersion   int
	graphVersion     int
	clustersVersion  int

	cfg *config.Config
	log *ober.Logger
	out io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	rootCmd := &cobra.Command{
		Use:           "ober",
		Short:         "Versioned artifact store for token and sense embeddings",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	rootCmd.SetOut(out)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "ober.yaml", "Config file path (ignored if missing)")
	pf.StringVar(&c.documentsPath, "documents_path", "", "Documents root (default from config)")
	pf.StringVar(&c.tokensPath, "tokens_path", "", "Token dictionary root (default from config)")
	pf.StringVar(&c.sensesPath, "senses_path", "", "Sense dictionary root (default from config)")
	pf.StringVar(&c.clustersPath, "clusters_path", "", "Cluster store root (default from config)")
	pf.StringVar(&c.set, "set", "", "Document set (default from config)")

	rootCmd.AddCommand(
		c.documentsCmd(),
		c.tokensCmd(),
		c.graphCmd(),
		c.sensesCmd(),
		c.publishCmd(),
	)
	return rootCmd
}

func (c *cli) setup() error {
	cfg, err := config.LoadIfExists(c.configPath)
	if err != nil {
		return err
	}
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Documents.Path, c.documentsPath)
	override(&cfg.Documents.Set, c.set)
	override(&cfg.Tokens.Path, c.tokensPath)
	override(&cfg.Senses.Path, c.sensesPath)
	override(&cfg.Senses.ClustersPath, c.clustersPath)
	c.cfg = cfg

	c.log, err = newLogger(cfg.Log)
	return err
}

func newLogger(lc config.LogConfig) (*ober.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if lc.Format == "json" {
		return ober.NewJSONLogger(level), nil
	}
	return ober.NewTextLogger(level), nil
}

func (c *cli) workspace() (*ober.Workspace, error) {
	kind, err := compression.Parse(c.cfg.Documents.Compression)
	if err != nil {
		return nil, err
	}
	cd, ok := codec.ByName(c.cfg.Documents.Codec)
	if !ok {
		return nil, fmt.Errorf("documents.codec: unknown codec %q", c.cfg.Documents.Codec)
	}
	return ober.Open(".",
		ober.WithLogger(c.log),
		ober.WithLayout(ober.Layout{
			Documents: c.cfg.Documents.Path,
			Tokens:    c.cfg.Tokens.Path,
			Senses:    c.cfg.Senses.Path,
			Clusters:  c.cfg.Senses.ClustersPath,
		}),
		ober.WithCodec(cd),
		ober.WithCompression(kind),
		ober.WithBatchSize(c.cfg.Documents.BatchSize),
		ober.WithWriteLimit(int64(c.cfg.Documents.WriteLimit)),
		ober.WithWidth(c.cfg.Tokens.Width),
		ober.WithMinCount(c.cfg.Tokens.MinCount),
		ober.WithMmap(c.cfg.Tokens.Mmap),
		ober.WithGraph(c.cfg.Graph.Neighbors, c.cfg.Graph.BatchSize, c.cfg.Graph.Workers),
	)
}

func (c *cli) tokensLoad() dictionary.LoadOptions {
	return dictionary.LoadOptions{ContentVersion: c.tokensVersion, VectorsVersion: c.vectorsVersion}
}

func (c *cli) documentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Corpus batches",
	}

	addCmd := &cobra.Command{
		Use:   "add [file...]",
		Short: "Append JSON-lines documents from files or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.addDocuments(cmd.Context(), cmd.InOrStdin(), args)
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-batch statistics of a document set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.documentStats()
		},
	}
	statsCmd.Flags().IntVar(&c.documentsVersion, "documents_version", 0, "Documents content version (default latest)")

	cmd.AddCommand(addCmd, statsCmd)
	return cmd
}

func (c *cli) addDocuments(ctx context.Context, stdin io.Reader, files []string) error {
	ws, err := c.workspace()
	if err != nil {
		return err
	}
	cd, _ := codec.ByName(c.cfg.Documents.Codec)

	readers := []io.Reader{stdin}
	if len(files) > 0 {
		readers = readers[:0]
		for _, name := range files {
			f, err := os.Open(name)
			if err != nil {
				return err
			}
			defer f.Close()
			readers = append(readers, f)
		}
	}

	res, err := ws.AddDocuments(ctx, c.cfg.Documents.Set, corpus.NewLineSource(io.MultiReader(readers...), cd))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added %d documents (%d sentences) in %d batches\n", res.Documents, res.Sentences, len(res.Batches))
	return nil
}

func (c *cli) documentStats() error {
	ws, err := c.workspace()
	if err != nil {
		return err
	}
	docs, err := ws.Documents(c.cfg.Documents.Set, c.documentsVersion)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s content version %d\n", docs.Root(), docs.ContentVersion())
	fmt.Fprintf(c.out, "  %-8s %12s %12s\n", "batch", "documents", "sentences")
	for _, b := range docs.Batches() {
		st, err := docs.BatchStats(b)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "  %-8d %12d %12d\n", b, st.Documents, st.TotalSentences)
	}
	fmt.Fprintf(c.out, "  %-8s %12d %12d\n", "total", docs.TotalDocuments(), docs.TotalSentences())
	return nil
}

func (c *cli) tokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Token dictionary",
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Rebuild the token vocabulary from a document set",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.workspace()
			if err != nil {
				return err
			}
			_, res, err := ws.UpdateTokens(cmd.Context(), c.cfg.Documents.Set, c.documentsVersion)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Saved %d tokens as content version %d (%d vectors kept)\n",
				res.Symbols, res.Location.ContentVersion, res.Transferred)
			return nil
		},
	}
	updateCmd.Flags().IntVar(&c.documentsVersion, "documents_version", 0, "Documents content version (default latest)")

	var k int
	similarCmd := &cobra.Command{
		Use:   "similar <token>...",
		Short: "Print the nearest tokens by cosine similarity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.workspace()
			if err != nil {
				return err
			}
			tokens, err := ws.Tokens(cmd.Context(), c.tokensLoad())
			if err != nil {
				return err
			}
			for _, sym := range args {
				near, err := ws.Similar(tokens, sym, k)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s:\n", sym)
				for _, n := range near {
					fmt.Fprintf(c.out, "  %-24s %.4f\n", n.Symbol, n.Score)
				}
			}
			return nil
		},
	}
	similarCmd.Flags().IntVarP(&k, "k", "k", dictionary.DefaultNeighbors, "Number of neighbors")
	c.tokenVersionFlags(similarCmd)

	cmd.AddCommand(updateCmd, similarCmd)
	return cmd
}

func (c *cli) tokenVersionFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&c.tokensVersion, "tokens_version", 0, "Token content version (default latest)")
	cmd.Flags().IntVar(&c.vectorsVersion, "vectors_version", 0, "Token vectors version (default latest)")
}

func (c *cli) graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Similarity graph",
	}
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the nearest-neighbor graph of the token vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.workspace()
			if err != nil {
				return err
			}
			loc, st, err := ws.ExportGraph(cmd.Context(), c.tokensLoad())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Wrote %d nodes, %d edges to %s in %s\n", st.Nodes, st.Edges, loc.Path, st.Duration)
			return nil
		},
	}
	c.tokenVersionFlags(exportCmd)
	cmd.AddCommand(exportCmd)
	return cmd
}

func (c *cli) sensesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "senses",
		Short: "Sense clusters and sense dictionary",
	}

	clusterCmd := &cobra.Command{
		Use:   "cluster",
		Short: "Run the external clusterer on a similarity graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.workspace()
			if err != nil {
				return err
			}
			g, err := ws.Graph(c.tokensVersion, c.graphVersion)
			if err != nil {
				return err
			}
			runner := sense.NewRunner(c.cfg.Clusterer.Command, c.cfg.Clusterer.Args,
				sense.WithWorkers(c.cfg.Clusterer.Workers),
				sense.WithClusterVersion(c.clustersVersion),
				sense.WithLogger(c.log.WithTier(ober.SensesDir).Logger),
			)
			res, err := ws.Cluster(cmd.Context(), runner, g)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Committed clusters version %d to %s\n", res.ClusterVersion, res.Path)
			return nil
		},
	}
	clusterCmd.Flags().IntVar(&c.tokensVersion, "tokens_version", 0, "Token content version (default latest)")
	clusterCmd.Flags().IntVar(&c.graphVersion, "graph_version", 0, "Graph version (default latest)")
	clusterCmd.Flags().IntVar(&c.clustersVersion, "clusters_version", 0, "Cluster version to write (default next)")

	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Build the sense dictionary from clusters and token vectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.workspace()
			if err != nil {
				return err
			}
			senses, st, err := ws.PoolSenses(cmd.Context(), c.tokensLoad(), c.clustersVersion)
			if err != nil {
				return err
			}
			loc := senses.Location()
			fmt.Fprintf(c.out, "Saved %d senses (%d unweighted) as content version %d\n",
				st.Senses, st.Unweighted, loc.ContentVersion)
			return nil
		},
	}
	c.tokenVersionFlags(poolCmd)
	poolCmd.Flags().IntVar(&c.clustersVersion, "clusters_version", 0, "Cluster version (default latest)")

	cmd.AddCommand(clusterCmd, poolCmd)
	return cmd
}

func (c *cli) publishCmd() *cobra.Command {
	var v int
	cmd := &cobra.Command{
		Use:       "publish <documents|tokens|senses|clusters>",
		Short:     "Upload a committed version to the configured blob store",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"documents", "tokens", "senses", "clusters"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.publish(cmd.Context(), args[0], v)
		},
	}
	cmd.Flags().IntVar(&v, "version", 0, "Version to publish (default latest)")
	return cmd
}

func (c *cli) publish(ctx context.Context, tier string, v int) error {
	ws, err := c.workspace()
	if err != nil {
		return err
	}
	var root, set string
	switch tier {
	case "documents":
		set = c.cfg.Documents.Set
		root = ws.DocumentsPath(set)
	case "tokens":
		root = ws.TokensPath()
	case "senses":
		root = ws.SensesPath()
	case "clusters":
		root = ws.ClustersPath()
	default:
		return fmt.Errorf("unknown tier %q", tier)
	}
	versions, err := version.OpenExisting(root, version.ContentWidth)
	if err != nil {
		return err
	}
	if v, err = versions.Resolve(v); err != nil {
		return err
	}

	dst, err := c.blobStore(ctx)
	if err != nil {
		return err
	}
	prefix := blobstore.Join(c.cfg.Publish.Prefix, tier, filepath.ToSlash(set), versions.Name(v))
	m, err := ws.Publish(ctx, dst, versions.Path(v), prefix,
		blobstore.WithConcurrency(c.cfg.Publish.Concurrency))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Published %d files to %s\n", len(m.Files), prefix)
	return nil
}

func (c *cli) blobStore(ctx context.Context) (blobstore.BlobStore, error) {
	p := c.cfg.Publish
	switch p.Backend {
	case "local":
		return blobstore.NewLocalStore(filepath.Clean(p.Dir)), nil
	case "minio":
		client, err := minioclient.New(p.Endpoint, &minioclient.Options{
			Creds:  credentials.NewStaticV4(p.AccessKey, p.SecretKey, ""),
			Secure: p.Secure,
			Region: p.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minio.NewStore(client, p.Bucket, ""), nil
	case "s3":
		var opts []s3.Option
		if p.Region != "" {
			opts = append(opts, s3.WithRegion(p.Region))
		}
		if p.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(p.Endpoint))
		}
		store, err := s3.New(ctx, p.Bucket, opts...)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("publish.backend: unknown backend %q", p.Backend)
	}
}
