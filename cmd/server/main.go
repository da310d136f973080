package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GoCodeAlone/pipelineapi/api"
	"github.com/GoCodeAlone/pipelineapi/cache"
	"github.com/GoCodeAlone/pipelineapi/events"
	"github.com/GoCodeAlone/pipelineapi/observability"
	"github.com/GoCodeAlone/pipelineapi/observability/tracing"
	"github.com/GoCodeAlone/pipelineapi/pkg/tlsutil"
	"github.com/GoCodeAlone/pipelineapi/secrets"
	"github.com/GoCodeAlone/pipelineapi/service"
	"github.com/GoCodeAlone/pipelineapi/store"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

var (
	addr      = flag.String("addr", ":8153", "HTTP listen address")
	baseURL   = flag.String("base-url", "", "Base URL for _links (default: derived from each request)")
	envFile   = flag.String("env-file", ".env", "Optional dotenv file loaded before reading PIPELINEAPI_* variables")
	jwtSecret = flag.String("jwt-secret", "", "HS256 secret for admin tokens; empty disables security")
	rateLimit = flag.Int("rate-limit", 0, "Requests per minute per client IP (0 disables)")
	logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn or error")

	storeKind   = flag.String("store", "memory", "Pipeline store: memory, sqlite or postgres")
	sqlitePath  = flag.String("sqlite-path", "data/pipelines.db", "SQLite database path")
	databaseURL = flag.String("database-url", "", "PostgreSQL connection URL")

	lockKind      = flag.String("lock", "memory", "ETag lock backend: memory, redis or postgres")
	etagCache     = flag.String("etag-cache", "memory", "ETag cache backend: memory or redis")
	redisAddr     = flag.String("redis-addr", "localhost:6379", "Redis address")
	redisPassword = flag.String("redis-password", "", "Redis password")

	seedFile      = flag.String("seed", "", "YAML seed file applied at startup and on change")
	pluginsFile   = flag.String("plugins", "", "YAML plugin registry file")
	encryptionKey = flag.String("encryption-key", "", "Master key for secure values")

	natsURL      = flag.String("nats-url", "", "NATS server URL for change events (empty disables)")
	otlpEndpoint = flag.String("otlp-endpoint", "", "OTLP/HTTP endpoint for traces (empty disables)")

	tlsCert = flag.String("tls-cert", "", "TLS certificate file")
	tlsKey  = flag.String("tls-key", "", "TLS key file")

	secretsDir = flag.String("secrets-dir", "", "Directory for file:// secret references")
	vaultAddr  = flag.String("vault-addr", "", "Vault address for vault:// secret references")
	vaultToken = flag.String("vault-token", "", "Vault token")
)

// envOverrides maps environment variables to the flags they set.
var envOverrides = map[string]string{
	"PIPELINEAPI_ADDR":           "addr",
	"PIPELINEAPI_BASE_URL":       "base-url",
	"PIPELINEAPI_JWT_SECRET":     "jwt-secret",
	"PIPELINEAPI_RATE_LIMIT":     "rate-limit",
	"PIPELINEAPI_LOG_LEVEL":      "log-level",
	"PIPELINEAPI_STORE":          "store",
	"PIPELINEAPI_SQLITE_PATH":    "sqlite-path",
	"PIPELINEAPI_DATABASE_URL":   "database-url",
	"PIPELINEAPI_LOCK":           "lock",
	"PIPELINEAPI_ETAG_CACHE":     "etag-cache",
	"PIPELINEAPI_REDIS_ADDR":     "redis-addr",
	"PIPELINEAPI_REDIS_PASSWORD": "redis-password",
	"PIPELINEAPI_SEED":           "seed",
	"PIPELINEAPI_PLUGINS":        "plugins",
	"PIPELINEAPI_ENCRYPTION_KEY": "encryption-key",
	"PIPELINEAPI_NATS_URL":       "nats-url",
	"PIPELINEAPI_OTLP_ENDPOINT":  "otlp-endpoint",
	"PIPELINEAPI_TLS_CERT":       "tls-cert",
	"PIPELINEAPI_TLS_KEY":        "tls-key",
	"PIPELINEAPI_SECRETS_DIR":    "secrets-dir",
	"PIPELINEAPI_VAULT_ADDR":     "vault-addr",
	"PIPELINEAPI_VAULT_TOKEN":    "vault-token",
}

// envOrFlag returns the environment variable when set, otherwise the flag value.
func envOrFlag(envKey string, flagVal *string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if flagVal != nil {
		return *flagVal
	}
	return ""
}

// applyEnvOverrides copies PIPELINEAPI_* variables into flags that were not
// given on the command line.
func applyEnvOverrides() {
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	for env, name := range envOverrides {
		if explicit[name] {
			continue
		}
		f := flag.Lookup(name)
		if f == nil {
			continue
		}
		if v := envOrFlag(env, nil); v != "" {
			if err := f.Value.Set(v); err != nil {
				slog.Warn("ignoring invalid environment override", "env", env, "error", err)
			}
		}
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func main() {
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}
	applyEnvOverrides()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// resolveSecrets replaces secret:// references in flag values. The Vault
// token is resolved first so Vault can back the remaining references.
func resolveSecrets(ctx context.Context) error {
	resolver := secrets.NewResolver()
	if *secretsDir != "" {
		resolver.Register(secrets.NewFileProvider(*secretsDir))
	}
	if err := resolver.ResolveAll(ctx, vaultToken); err != nil {
		return err
	}
	if *vaultAddr != "" {
		vp, err := secrets.NewVaultProvider(secrets.VaultConfig{Address: *vaultAddr, Token: *vaultToken})
		if err != nil {
			return err
		}
		resolver.Register(vp)
	}
	return resolver.ResolveAll(ctx, jwtSecret, databaseURL, redisPassword, encryptionKey)
}

func run(ctx context.Context, logger *slog.Logger) error {
	if err := resolveSecrets(ctx); err != nil {
		return fmt.Errorf("resolve secrets: %w", err)
	}

	if *otlpEndpoint != "" {
		tcfg := tracing.DefaultConfig()
		tcfg.Endpoint = *otlpEndpoint
		tp, err := tracing.NewProvider(ctx, tcfg)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	metrics := observability.NewMetrics("")

	b, err := newBackends(ctx, backendConfig{
		Store:         *storeKind,
		SQLitePath:    *sqlitePath,
		DatabaseURL:   *databaseURL,
		Lock:          *lockKind,
		ETagCache:     *etagCache,
		RedisAddr:     *redisAddr,
		RedisPassword: *redisPassword,
		EncryptionKey: *encryptionKey,
		PluginsFile:   *pluginsFile,
	}, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	etags := cache.NewETags(b.etagStore, b.locker)
	metrics.RegisterETagStats("", etags.Stats)

	publisher, closePublisher, err := newPublisher(*natsURL, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	svc := service.NewPipelineConfigService(b.pipelines,
		service.WithAuthorizer(service.AdminAuthorizer{SecurityEnabled: *jwtSecret != ""}),
		service.WithPublisher(publisher),
		service.WithMetrics(metrics),
		service.WithLogger(logger),
	)

	if *seedFile != "" {
		seeder := store.NewSeeder(b.pipelines, b.codec, logger)
		watcher := store.NewSeedWatcher(store.NewSeedFile(*seedFile), seeder,
			refreshETags(b.pipelines, b.codec, etags, logger), store.WithWatchLogger(logger))
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	router := api.NewRouter(api.Deps{Service: svc, Codec: b.codec, ETags: etags}, api.Config{
		JWTSecret: *jwtSecret,
		BaseURL:   *baseURL,
		RateLimit: *rateLimit,
		Logger:    logger,
		Metrics:   metrics,
	})
	defer router.Close()

	tlsCfg, err := tlsutil.LoadTLSConfig(tlsutil.TLSConfig{
		Enabled:  *tlsCert != "",
		CertFile: *tlsCert,
		KeyFile:  *tlsKey,
	})
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           otelhttp.NewHandler(router, "pipelineapi"),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, server, logger)
}

func serve(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", server.Addr, "tls", server.TLSConfig != nil)
		var err error
		if server.TLSConfig != nil {
			// Certificates come from TLSConfig.
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newPublisher(url string, logger *slog.Logger) (events.Publisher, func(), error) {
	if strings.TrimSpace(url) == "" {
		return events.Nop{}, func() {}, nil
	}
	p, err := events.ConnectNATS(events.NATSConfig{URL: url}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("nats: %w", err)
	}
	return p, p.Close, nil
}
