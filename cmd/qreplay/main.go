package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wilhg/qreplay/pkg/circuit"
	"github.com/wilhg/qreplay/pkg/config"
	"github.com/wilhg/qreplay/pkg/errmodel"
	"github.com/wilhg/qreplay/pkg/hardware"
	"github.com/wilhg/qreplay/pkg/logging"
	"github.com/wilhg/qreplay/pkg/mcpserver"
	"github.com/wilhg/qreplay/pkg/otel"
	"github.com/wilhg/qreplay/pkg/registry"
	"github.com/wilhg/qreplay/pkg/replay"
	"github.com/wilhg/qreplay/pkg/sampling"
	"github.com/wilhg/qreplay/pkg/store"
	"github.com/wilhg/qreplay/pkg/store/entstore"
	"github.com/wilhg/qreplay/pkg/store/redisstore"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

type options struct {
	showVersion bool
	serveMCP    bool
	cfg         config.Config
}

func parseFlags(args []string, cfg config.Config) (options, error) {
	opts := options{cfg: cfg}
	fs := flag.NewFlagSet("qreplay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	fs.BoolVar(&opts.serveMCP, "mcp", false, "serve MCP over stdio instead of HTTP")
	fs.StringVar(&opts.cfg.Addr, "addr", cfg.Addr, "http listen address")
	fs.StringVar(&opts.cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "grpc health listen address (empty disables)")
	fs.StringVar(&opts.cfg.CorpusFile, "corpus", cfg.CorpusFile, "corpus file in the exchange format")
	fs.StringVar(&opts.cfg.CorpusName, "corpus-name", cfg.CorpusName, "corpus and backend name")
	fs.StringVar(&opts.cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "sqlite: or postgres DSN of a corpus store")
	fs.StringVar(&opts.cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address of a corpus store")
	fs.StringVar(&opts.cfg.DeviceFile, "device", cfg.DeviceFile, "hardware descriptor TOML file")
	fs.BoolVar(&opts.cfg.ShotsRoundup, "shots-roundup", cfg.ShotsRoundup, "round an incomplete last chunk up to the device minimum")
	fs.BoolVar(&opts.cfg.AtomicSample, "atomic", cfg.AtomicSample, "all-or-nothing multi-chunk sampling")
	fs.StringVar(&opts.cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain returns the process exit code so deferred cleanup runs first.
func realMain(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	opts, err := parseFlags(args, cfg)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if opts.showVersion {
		fmt.Printf("qreplay %s (commit=%s, date=%s)\n", version, commit, date)
		return 0
	}

	logger, restore, err := logging.Install(logging.Config{Level: opts.cfg.LogLevel, Encoding: opts.cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return 1
	}
	defer restore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("qreplay stopped", zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	cfg := opts.cfg
	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName:    "qreplay",
		ServiceVersion: version,
		UseStdout:      cfg.OTelStdout,
		Endpoint:       cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(sctx)
	}()

	b, err := loadBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	reg := registry.New()
	if err := reg.Register(cfg.CorpusName, b); err != nil {
		return err
	}

	if opts.serveMCP {
		srv, err := mcpserver.New(reg, version, mcpserver.WithLogger(logger))
		if err != nil {
			return err
		}
		return srv.ServeStdio(ctx)
	}

	if cfg.GRPCAddr != "" {
		stopGRPC, err := serveHealth(cfg.GRPCAddr, logger)
		if err != nil {
			return err
		}
		defer stopGRPC()
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           otelhttp.NewHandler(buildMux(reg), "qreplay"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()
	logger.Info("qreplay listening", zap.String("addr", cfg.Addr), zap.String("backend", cfg.CorpusName))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	}
}

// loadBackend builds the replay backend from a corpus store when one is
// configured, importing the corpus file into it first, or else straight
// from the corpus file.
func loadBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*replay.Backend, error) {
	device := hardware.V2("replay")
	if cfg.DeviceFile != "" {
		d, err := hardware.LoadFile(cfg.DeviceFile)
		if err != nil {
			return nil, err
		}
		device = d
	}

	ropts := []replay.Option{replay.WithShotsRoundup(cfg.ShotsRoundup), replay.WithLogger(logger)}
	if cfg.AtomicSample {
		ropts = append(ropts, replay.WithAtomicSample())
	}
	if len(cfg.QubitMapping) > 0 {
		m, err := sampling.NewQubitMapping(cfg.QubitMapping)
		if err != nil {
			return nil, err
		}
		ropts = append(ropts, replay.WithQubitMapping(m))
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if st == nil {
		if cfg.CorpusFile == "" {
			return nil, errmodel.Validation(errmodel.CodeInvalidArgument, "no corpus configured: set a corpus file or a corpus store", nil)
		}
		doc, err := os.ReadFile(cfg.CorpusFile)
		if err != nil {
			return nil, fmt.Errorf("read corpus: %w", err)
		}
		return replay.New(doc, device, ropts...)
	}
	defer closeStore()

	if cfg.CorpusFile != "" {
		if err := seedCorpus(ctx, st, cfg, logger); err != nil {
			return nil, err
		}
	}
	return store.OpenBackend(ctx, st, cfg.CorpusName, device, ropts...)
}

// seedCorpus imports the corpus file only into an empty corpus, so restarts
// never duplicate stored records.
func seedCorpus(ctx context.Context, st store.CorpusStore, cfg config.Config, logger *zap.Logger) error {
	existing, err := st.ListRecords(ctx, cfg.CorpusName)
	switch {
	case err == nil:
		logger.Info("corpus already stored, skipping import",
			zap.String("corpus", cfg.CorpusName), zap.Int("records", len(existing)), zap.String("file", cfg.CorpusFile))
		return nil
	case !errors.Is(err, store.ErrCorpusNotFound):
		return err
	}
	doc, err := os.ReadFile(cfg.CorpusFile)
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	n, err := store.Import(ctx, st, cfg.CorpusName, doc)
	if err != nil {
		return err
	}
	logger.Info("corpus imported", zap.String("corpus", cfg.CorpusName), zap.Int("records", n))
	return nil
}

// openStore returns a nil store when none is configured.
func openStore(ctx context.Context, cfg config.Config) (store.CorpusStore, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		st, err := entstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case cfg.RedisAddr != "":
		st, err := redisstore.Open(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func serveHealth(addr string, logger *zap.Logger) (func(), error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	go func() {
		if err := gs.Serve(lis); err != nil {
			logger.Warn("grpc health server stopped", zap.Error(err))
		}
	}()
	logger.Info("grpc health listening", zap.String("addr", addr))
	return func() {
		hs.Shutdown()
		gs.GracefulStop()
	}, nil
}

type sampleRequest struct {
	Backend string          `json:"backend"`
	Circuit circuit.Circuit `json:"circuit"`
	Shots   int             `json:"shots"`
}

type sampleResponse struct {
	JobID  string          `json:"job_id"`
	Counts sampling.Counts `json:"counts"`
}

func buildMux(reg *registry.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/backends", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, reg.Describe())
	})
	mux.HandleFunc("POST /api/sample", func(w http.ResponseWriter, r *http.Request) {
		var req sampleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errmodel.WriteHTTP(w, r, errmodel.Validation(errmodel.CodeInvalidArgument, "invalid request body", map[string]any{"error": err.Error()}))
			return
		}
		b, err := reg.Get(req.Backend)
		if err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		}
		job, err := b.Sample(r.Context(), req.Circuit, req.Shots)
		if err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		}
		res, err := job.Result(r.Context())
		if err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		}
		writeJSON(w, sampleResponse{JobID: job.ID(), Counts: res.Counts()})
	})
	mux.HandleFunc("GET /api/corpus", func(w http.ResponseWriter, r *http.Request) {
		b, err := reg.Get(r.URL.Query().Get("backend"))
		if err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		}
		doc, err := b.Export()
		if err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
