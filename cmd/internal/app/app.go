// Package app wires the Quad server runtime: config, logging, stores, HTTP
// routes, and the websocket chat gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	authapi "quad/cmd/internal/auth/api"
	"quad/cmd/internal/auth/code"
	"quad/cmd/internal/auth/session"
	"quad/cmd/internal/chat"
	"quad/cmd/internal/community"
	"quad/cmd/internal/directory"
	"quad/cmd/internal/media"
	"quad/cmd/internal/notify"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// stores bundles every persistence boundary the runtime needs.
type stores struct {
	identities  directory.Store
	codes       code.Store
	messages    chat.MessageStore
	communities community.Store
}

// App is the Quad server runtime.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	ws          *chat.WSGateway
	auth        *authapi.Handler
	communities *community.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	ctx := context.Background()

	st, dbPool, dbEnabled, s, err := newStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	sessions, err := newSessionIssuer(log)
	if err != nil {
		st.closeQuiet(ctx)
		return nil, err
	}

	codes, err := code.NewService(s.codes, newNotifier(log), code.WithTTL(cfg.CodeTTL))
	if err != nil {
		st.closeQuiet(ctx)
		return nil, err
	}

	authHandler, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), s.identities, codes, sessions)
	if err != nil {
		st.closeQuiet(ctx)
		return nil, err
	}

	communityHandler, err := community.NewHandler(log, s.communities, sessions, s.identities)
	if err != nil {
		st.closeQuiet(ctx)
		return nil, err
	}

	uploader := newUploader(ctx, log)

	pipeline, err := chat.NewPipeline(log, s.messages, uploader)
	if err != nil {
		st.closeQuiet(ctx)
		return nil, err
	}

	ws, err := chat.NewWSGateway(log, chat.NewHub(log), s.messages, pipeline, sessions, s.identities)
	if err != nil {
		st.closeQuiet(ctx)
		return nil, err
	}

	if err := seedCommunities(ctx, s.communities, cfg.SeedCommunities); err != nil {
		log.Error("community.seed.fail", "err", err)
	}

	return &App{
		cfg:         cfg,
		log:         log,
		store:       st,
		dbPool:      dbPool,
		dbEnabled:   dbEnabled,
		ws:          ws,
		auth:        authHandler,
		communities: communityHandler,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.auth, a.communities)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(WithSecurityHeaders(mux), a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStores decides between Postgres-backed persistence and in-memory dev stores.
func newStores(ctx context.Context, cfg Config, log Logger) (lifecycleStore, *pgxpool.Pool, bool, stores, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_stores")
		return lifecycleStore{Store: nopStore{}}, nil, false, stores{
			identities:  directory.NewInMemoryStore(),
			codes:       code.NewInMemoryStore(),
			messages:    chat.NewInMemoryStore(),
			communities: community.NewInMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return lifecycleStore{}, nil, false, stores{}, err
	}

	log.Info("db.enabled.postgres_stores")

	// Ownership model:
	// - app owns pool lifecycle
	// - each PostgresStore.Close() is a no-op
	identities, err := directory.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return lifecycleStore{}, nil, false, stores{}, err
	}
	codes, err := code.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return lifecycleStore{}, nil, false, stores{}, err
	}
	messages, err := chat.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return lifecycleStore{}, nil, false, stores{}, err
	}
	communities, err := community.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return lifecycleStore{}, nil, false, stores{}, err
	}

	s := stores{
		identities:  identities,
		codes:       codes,
		messages:    messages,
		communities: communities,
	}
	return lifecycleStore{Store: dbStore{pool: pool}}, pool, true, s, nil
}

type lifecycleStore struct {
	Store
}

func (l lifecycleStore) closeQuiet(ctx context.Context) {
	if l.Store != nil {
		_ = l.Close(ctx)
	}
}

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// newSessionIssuer loads the signing key from the environment. A missing key
// falls back to an ephemeral dev key: every restart invalidates all sessions,
// which is fine locally and loudly logged.
func newSessionIssuer(log Logger) (session.Issuer, error) {
	cfg, err := session.LoadConfigFromEnv()
	if err != nil {
		if !errors.Is(err, session.ErrConfig) {
			return nil, err
		}
		cfg = session.DefaultConfig()
		cfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
		log.Warn("session.key.ephemeral", "hint", "set QUAD_PASETO_V4_SECRET_KEY_HEX to keep sessions across restarts")
	}
	return session.NewPasetoV4PublicIssuer(cfg)
}

// newNotifier picks the code delivery channel. "log" prints codes to the
// server log for development; "noop" swallows them.
func newNotifier(log Logger) notify.Notifier {
	switch EnvString("QUAD_NOTIFY_MODE", "log") {
	case "noop":
		return notify.NoopNotifier{}
	default:
		return notify.LogNotifier{Log: log}
	}
}

// newUploader picks S3 when configured, the in-memory uploader otherwise.
func newUploader(ctx context.Context, log Logger) media.Uploader {
	s3cfg, err := media.LoadS3ConfigFromEnv()
	if err != nil {
		log.Info("media.s3.disabled.memory_uploader", "reason", err.Error())
		return media.NewMemoryUploader()
	}
	up, err := media.NewS3Uploader(ctx, s3cfg)
	if err != nil {
		log.Error("media.s3.init.fail", "err", err)
		return media.NewMemoryUploader()
	}
	log.Info("media.s3.enabled", "bucket", s3cfg.Bucket)
	return up
}

func seedCommunities(ctx context.Context, store community.Store, csv string) error {
	for _, raw := range strings.Split(csv, ",") {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		display := strings.ToUpper(id[:1]) + id[1:]
		if _, err := store.EnsureCommunity(ctx, community.Community{
			ID:          id,
			DisplayName: display,
		}); err != nil {
			return err
		}
	}
	return nil
}
