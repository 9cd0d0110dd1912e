// Package db opens the Postgres pool behind submission history.
package db

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"resume-intake/internal/shared/errs"
	"resume-intake/internal/shared/telemetry"
)

const provider = "postgres"

// Profile selects pool defaults for the kind of process opening the database.
type Profile string

const (
	ProfileServer  Profile = "server"
	ProfileLambda  Profile = "lambda"
	ProfileMigrate Profile = "migrate"
)

// Options controls pool sizing and the connectivity check.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var openDB = sql.Open

var profileDefaults = map[Profile]Options{
	ProfileServer:  {MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxIdleTime: 2 * time.Minute, ConnMaxLifetime: time.Hour, PingTimeout: 5 * time.Second},
	ProfileLambda:  {MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxIdleTime: 30 * time.Second, ConnMaxLifetime: 15 * time.Minute, PingTimeout: 3 * time.Second},
	ProfileMigrate: {MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxIdleTime: 2 * time.Minute, ConnMaxLifetime: time.Hour, PingTimeout: 5 * time.Second},
}

// DetectProfile returns ProfileLambda inside AWS Lambda and ProfileServer otherwise.
func DetectProfile() Profile {
	if strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != "" {
		return ProfileLambda
	}
	return ProfileServer
}

// DefaultOptions returns the pool defaults for p. Unknown profiles get server defaults.
func DefaultOptions(p Profile) Options {
	if opts, ok := profileDefaults[p]; ok {
		return opts
	}
	return profileDefaults[ProfileServer]
}

type envOverride struct {
	key   string
	apply func(*Options, string) error
}

var envOverrides = []envOverride{
	{"DB_MAX_OPEN_CONNS", func(o *Options, raw string) (err error) { o.MaxOpenConns, err = strconv.Atoi(raw); return }},
	{"DB_MAX_IDLE_CONNS", func(o *Options, raw string) (err error) { o.MaxIdleConns, err = strconv.Atoi(raw); return }},
	{"DB_CONN_MAX_LIFETIME", func(o *Options, raw string) (err error) { o.ConnMaxLifetime, err = time.ParseDuration(raw); return }},
	{"DB_CONN_MAX_IDLE_TIME", func(o *Options, raw string) (err error) { o.ConnMaxIdleTime, err = time.ParseDuration(raw); return }},
	{"DB_PING_TIMEOUT", func(o *Options, raw string) (err error) { o.PingTimeout, err = time.ParseDuration(raw); return }},
}

// OptionsFromEnv overlays DB_* variables on defaults. Unparseable values are logged and ignored.
func OptionsFromEnv(defaults Options) Options {
	opts := defaults
	for _, o := range envOverrides {
		raw := strings.TrimSpace(os.Getenv(o.key))
		if raw == "" {
			continue
		}
		next := opts
		if err := o.apply(&next, raw); err != nil {
			telemetry.Warn("db.env_invalid", map[string]any{"key": o.key, "error": err})
			continue
		}
		opts = next
	}
	return opts
}

// Open connects for profile p. Lambda invocations share one pool per execution environment.
func Open(ctx context.Context, databaseURL string, p Profile) (*sql.DB, error) {
	opts := OptionsFromEnv(DefaultOptions(p))
	if p == ProfileLambda {
		return shared.get(ctx, databaseURL, opts)
	}
	return Connect(ctx, databaseURL, opts)
}

// Connect opens a pool and verifies it with a ping. A blank URL is a configuration error;
// an unreachable server is an upstream error.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errs.Config("history", "DATABASE_URL")
	}

	pool, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, errs.Upstream(provider, "open", err)
	}
	applyOptions(pool, opts)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, errs.Upstream(provider, "ping", err)
	}

	stats := pool.Stats()
	telemetry.Info("db.pool_ready", map[string]any{
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
	})
	return pool, nil
}

// sharedPool keeps the first successful pool. Failed attempts leave it empty so the next
// invocation retries.
type sharedPool struct {
	mu sync.Mutex
	db *sql.DB
}

var shared sharedPool

func (s *sharedPool) get(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	pool, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	s.db = pool
	return pool, nil
}

func (s *sharedPool) reset() {
	s.mu.Lock()
	s.db = nil
	s.mu.Unlock()
}

func applyOptions(pool *sql.DB, opts Options) {
	def := profileDefaults[ProfileServer]
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = def.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = def.MaxIdleConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = def.ConnMaxLifetime
	}
	pool.SetMaxOpenConns(opts.MaxOpenConns)
	pool.SetMaxIdleConns(opts.MaxIdleConns)
	pool.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}
