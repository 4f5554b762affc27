// Package main is the museai CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/museai/internal/artifact"
	"github.com/hyperjump/museai/internal/cli"
	"github.com/hyperjump/museai/internal/config"
	"github.com/hyperjump/museai/internal/embedding"
	"github.com/hyperjump/museai/internal/eval"
	"github.com/hyperjump/museai/internal/generate"
	"github.com/hyperjump/museai/internal/indexer"
	"github.com/hyperjump/museai/internal/models"
	"github.com/hyperjump/museai/internal/search"
	"github.com/hyperjump/museai/internal/server"
	"github.com/hyperjump/museai/internal/storage"
	"github.com/hyperjump/museai/internal/watcher"
	"github.com/hyperjump/museai/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/museai/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development). When neither file
// exists, the built-in defaults are used with paths relative to the current
// directory. Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			config.LoadEnv(".")
			cfg := config.Default()
			if err := config.Validate(cfg); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "build":
		runBuild()
	case "search":
		runSearch()
	case "context":
		runContext()
	case "eval":
		runEval()
	case "server":
		runServer()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "runs":
		runRuns()
	case "version", "--version", "-v":
		fmt.Printf("museai version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// fail prints a diagnostic to stderr and exits with status 1.
func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// setup loads the config and creates the logger shared by every subcommand.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fail("Failed to load config", err)
	}
	cfg.Debug = cfg.Debug || debug
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fail("Failed to create logger", err)
	}
	return cfg, resolved, logger
}

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Remote    embedding.Embedder
	Embedder  *embedding.CachedEmbedder
	Retriever *search.Retriever
	Indexer   *indexer.Indexer
	Runs      storage.RunStore
}

// Close releases the embedder and the run store.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Runs != nil {
		_ = c.Runs.Close()
	}
}

func artifactPaths(cfg *config.Config) artifact.Paths {
	return artifact.Paths{Index: cfg.Data.IndexPath, Metadata: cfg.Data.MetadataPath}
}

// newRemoteEmbedder creates the configured embedding client without cache or retry.
func newRemoteEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case config.ProviderHashing:
		return embedding.NewHashingEmbedder(ec.Dimensions), nil
	case config.ProviderRemote:
		key, err := config.APIKey(ec.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		return embedding.NewRemoteEmbedder(embedding.RemoteConfig{
			BaseURL:           ec.BaseURL,
			APIKey:            key,
			Model:             ec.Model,
			Dimensions:        ec.Dimensions,
			Timeout:           ec.Timeout(),
			RequestsPerSecond: ec.RequestsPerSecond,
			Burst:             ec.Burst,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", config.ErrConfig, ec.Provider)
	}
}

// newCachedEmbedder wraps remote with the configured cache bound and retry policy.
func newCachedEmbedder(cfg *config.Config, remote embedding.Embedder, logger *zap.Logger) *embedding.CachedEmbedder {
	return embedding.NewCachedEmbedder(remote,
		embedding.WithCapacity(cfg.Embedding.CacheSize),
		embedding.WithRetryPolicy(utils.RetryPolicy{
			MaxAttempts: cfg.Embedding.MaxAttempts,
			BaseDelay:   cfg.Embedding.BaseDelay(),
		}),
		embedding.WithLogger(logger),
	)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	remote, err := newRemoteEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	cached := newCachedEmbedder(cfg, remote, logger)
	paths := artifactPaths(cfg)

	var debugLogger *zap.Logger
	if cfg.Debug {
		debugLogger = logger
	}
	return &Components{
		Config:    cfg,
		Logger:    logger,
		Remote:    remote,
		Embedder:  cached,
		Retriever: search.NewRetriever(cached, paths, search.WithLogger(debugLogger)),
		// Build embeds the whole catalog in one call; a failure aborts the build.
		Indexer: indexer.NewIndexer(remote, paths, indexer.WithLogger(debugLogger)),
	}, nil
}

// openRuns opens the evaluation run history.
func (c *Components) openRuns() error {
	if c.Runs != nil {
		return nil
	}
	runs, err := storage.NewSQLiteRuns(c.Config.Data.RunsPath)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	c.Runs = runs
	return nil
}

func newGenerator(cfg *config.Config) (*generate.ChatGenerator, error) {
	gc := cfg.Generation
	key, err := config.APIKey(gc.APIKeyEnv)
	if err != nil {
		return nil, err
	}
	return generate.NewChatGenerator(generate.ChatConfig{
		BaseURL:           gc.BaseURL,
		APIKey:            key,
		Model:             gc.Model,
		Timeout:           gc.Timeout(),
		Temperature:       gc.Temperature,
		RequestsPerSecond: gc.RequestsPerSecond,
		Burst:             gc.Burst,
	}), nil
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	catalog := fs.String("catalog", "", "catalog table (.csv, .xlsx or .ods); default from config")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *catalog != "" {
		cfg.Data.CatalogPath = *catalog
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	res, err := components.Indexer.BuildFromFile(ctx, cfg.Data.CatalogPath)
	if err != nil {
		fail("Build failed", err)
	}
	fmt.Printf("Built %d artifact(s) with %d-dimensional embeddings in %s\n",
		res.Items, res.Dimensions, res.Duration.Round(time.Millisecond))
	fmt.Printf("  index:    %s\n", res.Paths.Index)
	fmt.Printf("  metadata: %s\n", res.Paths.Metadata)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: museai search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Results are the k nearest artifacts by squared Euclidean distance, closest first.

Examples:
  museai search silver crown
  museai search -k 5 "bronze oil lamp"
  museai search -server http://localhost:8080 -output json torah crown
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fail("Invalid flag", err)
	}
	return format
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty reads the artifacts directly")
	k := fs.Int("k", 0, "number of results (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	if *serverURL != "" {
		var res models.RetrievalResult
		if err := getViaHTTP(*serverURL, "/api/v1/retrieve", queryValues(queryStr, *k), &res); err != nil {
			fail("Search failed", err)
		}
		if err := cli.WriteRetrievalResults(os.Stdout, &res, format); err != nil {
			fail("Output failed", err)
		}
		return
	}

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	res, err := components.Retriever.Retrieve(ctx, queryStr, kOrDefault(*k, cfg))
	if err != nil {
		fail("Search failed", err)
	}
	if err := cli.WriteRetrievalResults(os.Stdout, res, format); err != nil {
		fail("Output failed", err)
	}
}

func kOrDefault(k int, cfg *config.Config) int {
	if k == 0 {
		return cfg.Retrieval.DefaultK
	}
	return k
}

func queryValues(q string, k int) url.Values {
	v := url.Values{"q": {q}}
	if k != 0 {
		v.Set("k", strconv.Itoa(k))
	}
	return v
}

func runContext() {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty reads the artifacts directly")
	id := fs.Int64("id", 0, "artifact id (skips embedding and search)")
	k := fs.Int("k", 0, "number of artifacts for a query context (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if *id == 0 && queryStr == "" {
		fmt.Fprintln(os.Stderr, "Usage: museai context [flags] (-id <artifact-id> | <query>)")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var text string
	if *serverURL != "" {
		var body struct {
			Context string `json:"context"`
		}
		var err error
		if *id != 0 {
			err = getViaHTTP(*serverURL, fmt.Sprintf("/api/v1/artifacts/%d/context", *id), nil, &body)
		} else {
			err = getViaHTTP(*serverURL, "/api/v1/context", queryValues(queryStr, *k), &body)
		}
		if err != nil {
			fail("Context failed", err)
		}
		text = body.Context
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fail("Failed to initialize", err)
		}
		defer components.Close()

		ctx, cancel := signalContext()
		defer cancel()
		if *id != 0 {
			text, err = components.Retriever.BuildContextForArtifactID(ctx, *id)
		} else {
			text, err = components.Retriever.BuildContextForQuery(ctx, queryStr, kOrDefault(*k, cfg))
		}
		if err != nil {
			fail("Context failed", err)
		}
	}
	if err := cli.WriteContext(os.Stdout, text, format); err != nil {
		fail("Output failed", err)
	}
}

func runEval() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: museai eval <retrieval|grounding> [flags]")
		os.Exit(1)
	}
	kind := os.Args[2]
	fs := flag.NewFlagSet("eval "+kind, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	queries := fs.String("queries", "", "labeled query table (query_id, query); default from config")
	groundTruth := fs.String("ground-truth", "", "ground-truth table (query_id, relevant_artifact_id); default from config")
	k := fs.Int("k", 0, "retrieval depth for hit@k (default from config)")
	language := fs.String("language", "", "answer language for grounding (default from config)")
	noRecord := fs.Bool("no-record", false, "do not record the run in the run history")
	_ = fs.Parse(os.Args[3:])

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	job := eval.Job{
		QueriesPath:       firstNonEmpty(*queries, cfg.Evaluation.QueriesPath),
		GroundTruthPath:   firstNonEmpty(*groundTruth, cfg.Evaluation.GroundTruthPath),
		RetrievalLogPath:  cfg.Evaluation.RetrievalLogPath,
		RetrievalEvalPath: cfg.Evaluation.RetrievalEvalPath,
		GroundingEvalPath: cfg.Evaluation.GroundingEvalPath,
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer components.Close()
	var runs storage.RunStore
	if !*noRecord {
		if err := components.openRuns(); err != nil {
			fail("Failed to initialize", err)
		}
		runs = components.Runs
	}

	ctx, cancel := signalContext()
	defer cancel()
	switch kind {
	case eval.KindRetrieval:
		evalK := cfg.Evaluation.K
		if *k > 0 {
			evalK = *k
		}
		ev := eval.NewRetrievalEvaluator(components.Retriever, eval.WithK(evalK), eval.WithRetrievalLogger(logger))
		rep, err := eval.RunRetrieval(ctx, ev, job, runs)
		if err != nil {
			fail("Retrieval evaluation failed", err)
		}
		eval.PrintRetrievalSummary(os.Stdout, rep.Summary, len(rep.Skipped))
		fmt.Printf("Run: %s\n", rep.RunID)
	case eval.KindGrounding:
		gen, err := newGenerator(cfg)
		if err != nil {
			fail("Failed to initialize", err)
		}
		ev := eval.NewGroundingEvaluator(components.Retriever, gen, components.Embedder,
			eval.WithLanguage(firstNonEmpty(*language, cfg.Generation.Language)),
			eval.WithGroundingLogger(logger))
		rep, err := eval.RunGrounding(ctx, ev, job, runs)
		if err != nil {
			fail("Grounding evaluation failed", err)
		}
		eval.PrintGroundingSummary(os.Stdout, rep.Summary, len(rep.Skipped))
		fmt.Printf("Run: %s\n", rep.RunID)
	default:
		fmt.Fprintf(os.Stderr, "Unknown eval kind: %s (use retrieval or grounding)\n", kind)
		os.Exit(1)
	}
	stats := components.Embedder.Stats()
	logger.Info("embedding cache",
		zap.Int("entries", stats.Entries),
		zap.Int64("hits", stats.Hits),
		zap.Int64("misses", stats.Misses),
		zap.Int64("evictions", stats.Evictions))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watchCatalog := fs.Bool("watch", false, "rebuild and reload when the catalog file changes")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	if err := components.openRuns(); err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}

	ctx, cancel := signalContext()
	defer cancel()
	if _, err := components.Retriever.Snapshot(ctx); err != nil {
		if !errors.Is(err, artifact.ErrMissingArtifact) {
			logger.Fatal("Failed to load artifacts", zap.Error(err))
		}
		logger.Warn("artifacts not built; queries fail until the catalog is built", zap.Error(err))
	}
	if p, ok := components.Remote.(embedding.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			logger.Warn("embedding endpoint unreachable; query endpoints fail until it recovers", zap.Error(err))
		}
	}

	if *watchCatalog {
		rb := watcher.NewRebuilder(ctx, components.Indexer, components.Retriever, logger)
		w := newCatalogWatcher(cfg, rb, logger)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(components.Retriever, components.Runs, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func newCatalogWatcher(cfg *config.Config, rb *watcher.Rebuilder, logger *zap.Logger) *watcher.Watcher {
	opts := []watcher.WatcherOption{watcher.WithDebounce(cfg.Watch.Debounce())}
	if cfg.Debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	return watcher.NewWatcher([]string{cfg.Data.CatalogPath}, rb.OnChange, opts...)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	initial := fs.Bool("build", true, "build once at startup before watching")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	rb := watcher.NewRebuilder(ctx, components.Indexer, nil, logger)
	if *initial {
		rb.OnChange(cfg.Data.CatalogPath)
	}
	w := newCatalogWatcher(cfg, rb, logger)
	if err := w.Start(ctx); err != nil {
		fail("Failed to start watcher", err)
	}
	defer w.Stop()
	fmt.Printf("Watching %s (Ctrl-C to stop)\n", cfg.Data.CatalogPath)
	<-ctx.Done()
	builds, errs := rb.Stats()
	fmt.Printf("Stopped after %d build(s), %d failure(s)\n", builds, errs)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty reads the artifacts directly")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status cli.Status
	if *serverURL != "" {
		if err := getViaHTTP(*serverURL, "/api/v1/status", nil, &status); err != nil {
			fail("Status failed", err)
		}
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		s, err := localStatus(context.Background(), cfg)
		if err != nil {
			fail("Status failed", err)
		}
		status = *s
	}
	if err := cli.WriteStatus(os.Stdout, &status, format); err != nil {
		fail("Output failed", err)
	}
}

// localStatus reads the artifacts and run history without creating an embedder.
func localStatus(ctx context.Context, cfg *config.Config) (*cli.Status, error) {
	status := &cli.Status{
		Config: &cli.StatusConfig{
			EmbeddingProvider: cfg.Embedding.Provider,
			EmbeddingModel:    cfg.Embedding.Model,
			CatalogPath:       cfg.Data.CatalogPath,
			IndexPath:         cfg.Data.IndexPath,
			MetadataPath:      cfg.Data.MetadataPath,
			DefaultK:          cfg.Retrieval.DefaultK,
		},
	}
	snap, err := artifact.Open(ctx, artifactPaths(cfg))
	switch {
	case err == nil:
		status.Items = snap.Len()
		status.IndexSize = snap.Index.Size()
		status.Dimensions = snap.Index.Dimensions()
	case !errors.Is(err, artifact.ErrMissingArtifact):
		return nil, err
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Data.IndexPath, cfg.Data.MetadataPath); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	if _, err := os.Stat(cfg.Data.RunsPath); err == nil {
		runs, err := storage.NewSQLiteRuns(cfg.Data.RunsPath)
		if err != nil {
			return nil, err
		}
		defer runs.Close()
		n, err := runs.CountRuns(ctx)
		if err != nil {
			return nil, err
		}
		status.Runs = int(n)
	}
	return status, nil
}

func runRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "maximum number of runs to list")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	runs, err := storage.NewSQLiteRuns(cfg.Data.RunsPath)
	if err != nil {
		fail("Failed to open run history", err)
	}
	defer runs.Close()
	list, err := runs.ListRuns(context.Background(), *limit)
	if err != nil {
		fail("List runs failed", err)
	}
	if err := cli.WriteRuns(os.Stdout, list, format); err != nil {
		fail("Output failed", err)
	}
}

// getViaHTTP decodes the JSON response of GET serverURL+path?query into out.
func getViaHTTP(serverURL, path string, query url.Values, out interface{}) error {
	u := strings.TrimRight(serverURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Get(u)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`museai - Museum artifact retrieval and grounding evaluation

Usage:
  museai build [flags]                  Embed the catalog and write the index + metadata
  museai search [flags] <query>         Show the nearest artifacts for a query
  museai context [flags] <query>        Print the grounding context for a query
  museai context -id <artifact-id>      Print the grounding context for a known artifact
  museai eval retrieval [flags]         Measure hit@1/2/3/k over labeled queries
  museai eval grounding [flags]         Compare answers with and without context
  museai server [flags]                 Start the HTTP API
  museai watch [flags]                  Rebuild whenever the catalog changes
  museai status [flags]                 Show artifact and run history status
  museai runs [flags]                   List recorded evaluation runs
  museai version                        Show version
  museai help                           Show this help

Common Flags:
  -config string    Config file path (default: /usr/local/etc/museai/config.yaml,
                    or ./config.yaml when present)
  -debug            Enable debug logging

Search / Context / Status Flags:
  -server string    Server URL; empty (default) reads the artifacts directly
  -k int            Number of artifacts (default: retrieval.default_k)
  -output string    Output format: text or json (default: text)

Eval Flags:
  -queries string        Labeled query table (default: evaluation.queries_path)
  -ground-truth string   Ground-truth table (default: evaluation.ground_truth_path)
  -k int                 hit@k depth for retrieval (default: evaluation.k)
  -language string       Answer language for grounding (default: generation.language)
  -no-record             Do not record the run in the run history

Server Flags:
  -watch            Rebuild and reload when the catalog file changes

Examples:
  museai build -catalog data/artifacts.xlsx
  museai search silver torah crown
  museai context -id 12
  museai eval retrieval -k 5
  museai eval grounding -language he
  museai server -watch
  museai status -output json`)
}
