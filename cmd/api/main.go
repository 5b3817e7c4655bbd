package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"kubeintent/internal/capability"
	"kubeintent/internal/cluster"
	"kubeintent/internal/discovery"
	"kubeintent/internal/manifest"
	"kubeintent/internal/oracle"
	"kubeintent/internal/session"
)

func main() {
	port := flag.String("port", ":8080", "server listen address")
	kubeconfig := flag.String("kubeconfig", os.Getenv("KUBECONFIG"), "kubeconfig path; empty means in-cluster")
	model := flag.String("model", envOr("ORACLE_MODEL", "gemini-2.0-flash"), "oracle model name")
	dataDir := flag.String("data-dir", envOr("DATA_DIR", ".kubeintent"), "local state directory")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	conn, err := cluster.NewKubernetesConnection(*kubeconfig, logger)
	if err != nil {
		logger.Error("cluster connection failed", "err", err)
		os.Exit(1)
	}

	oc, err := oracle.NewGeminiClient(ctx, *model)
	if err != nil {
		logger.Error("oracle init failed", "err", err)
		os.Exit(1)
	}
	defer oc.Close()
	client := oracle.Chain(oc,
		oracle.Retry(3, 300*time.Millisecond),
		oracle.ValidateEnvelope(),
	)

	orch, err := session.NewOrchestrator(session.Config{
		Connection: conn,
		Oracle:     client,
		Store:      sessionStoreFromEnv(*dataDir, logger),
		Manifests:  manifestStoreFromEnv(*dataDir, logger),
		Logger:     logger,
		Discovery: discovery.Options{
			Workers:  envInt("DISCOVERY_WORKERS", 8),
			MaxDepth: envInt("SCHEMA_MAX_DEPTH", 0),
			Cache:    capability.NewSchemaCache(envInt("SCHEMA_CACHE_SIZE", 1024), time.Hour),
			Logger:   logger,
		},
	})
	if err != nil {
		logger.Error("orchestrator init failed", "err", err)
		os.Exit(1)
	}

	srv := newAPIServer(orch, logger)
	logger.Info("starting API server", "addr", *port)
	if err := http.ListenAndServe(*port, withCORS(withOracleHook(logger, buildMux(srv)))); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// sessionStoreFromEnv prefers postgres when SESSION_PG_DSN is set, otherwise
// a JSON file under the data directory.
func sessionStoreFromEnv(dataDir string, logger *slog.Logger) session.Store {
	if dsn := strings.TrimSpace(os.Getenv("SESSION_PG_DSN")); dsn != "" {
		st, err := session.NewPostgresStore(dsn, logger)
		if err == nil {
			return st
		}
		logger.Warn("postgres session store unavailable, falling back to file", "err", err)
	}
	ttl := time.Duration(envInt("SESSION_TTL_MINUTES", 0)) * time.Minute
	return session.NewFileStore(dataDir+"/sessions.json", session.NewMemoryStore(ttl), logger)
}

// manifestStoreFromEnv prefers S3 when MANIFEST_S3_ENDPOINT is set.
func manifestStoreFromEnv(dataDir string, logger *slog.Logger) manifest.Store {
	if ep := strings.TrimSpace(os.Getenv("MANIFEST_S3_ENDPOINT")); ep != "" {
		st, err := manifest.NewS3Store(manifest.S3Config{
			Endpoint:  ep,
			Region:    os.Getenv("MANIFEST_S3_REGION"),
			AccessKey: os.Getenv("MANIFEST_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("MANIFEST_S3_SECRET_KEY"),
			Bucket:    envOr("MANIFEST_S3_BUCKET", "kubeintent"),
			UseSSL:    os.Getenv("MANIFEST_S3_USE_SSL") == "true",
		})
		if err == nil {
			return st
		}
		logger.Warn("s3 manifest store unavailable, falling back to local dir", "err", err)
	}
	return &manifest.DirStore{Root: dataDir}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
