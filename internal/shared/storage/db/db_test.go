package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"resume-intake/internal/shared/errs"
)

type nopDriver struct{}

func (d nopDriver) Open(name string) (driver.Conn, error) {
	if name == "unreachable" {
		return downConn{}, nil
	}
	return nopConn{}, nil
}

// downConn accepts the connection but fails every ping.
type downConn struct{ nopConn }

func (downConn) Ping(ctx context.Context) error { return errors.New("connection refused") }

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) { return nopStmt{}, nil }
func (nopConn) Close() error                              { return nil }
func (nopConn) Begin() (driver.Tx, error)                 { return nopTx{}, nil }
func (nopConn) Ping(ctx context.Context) error            { return nil }

type nopStmt struct{}

func (nopStmt) Close() error                                   { return nil }
func (nopStmt) NumInput() int                                  { return -1 }
func (nopStmt) Exec(args []driver.Value) (driver.Result, error) { return nopResult{}, nil }
func (nopStmt) Query(args []driver.Value) (driver.Rows, error)  { return nopRows{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type nopResult struct{}

func (nopResult) LastInsertId() (int64, error) { return 0, nil }
func (nopResult) RowsAffected() (int64, error) { return 0, nil }

type nopRows struct{}

func (nopRows) Columns() []string              { return []string{} }
func (nopRows) Close() error                   { return nil }
func (nopRows) Next(dest []driver.Value) error { return driver.ErrBadConn }

var registerTestDriverOnce sync.Once

func useTestDriver(t *testing.T) {
	t.Helper()
	registerTestDriverOnce.Do(func() {
		sql.Register("dbtest", nopDriver{})
	})
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		return sql.Open("dbtest", dsn)
	}
	shared.reset()
	t.Cleanup(func() {
		openDB = prev
		shared.reset()
	})
}

func TestDefaultOptionsPerProfile(t *testing.T) {
	tests := []struct {
		profile Profile
		maxOpen int
	}{
		{ProfileServer, 10},
		{ProfileLambda, 2},
		{ProfileMigrate, 1},
		{Profile("unknown"), 10},
	}
	for _, tt := range tests {
		if got := DefaultOptions(tt.profile).MaxOpenConns; got != tt.maxOpen {
			t.Fatalf("%s: expected MaxOpenConns=%d, got %d", tt.profile, tt.maxOpen, got)
		}
	}
}

func TestDetectProfile(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	if got := DetectProfile(); got != ProfileServer {
		t.Fatalf("expected server profile, got %s", got)
	}
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "intake-api")
	if got := DetectProfile(); got != ProfileLambda {
		t.Fatalf("expected lambda profile, got %s", got)
	}
}

func TestOptionsFromEnvAppliesOverrides(t *testing.T) {
	useTestDriver(t)

	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")

	opts := OptionsFromEnv(DefaultOptions(ProfileServer))
	pool, err := Connect(context.Background(), "ignored", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer pool.Close()

	if got := pool.Stats().MaxOpenConnections; got != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", got)
	}
	if opts.MaxIdleConns != 3 || opts.ConnMaxLifetime != 20*time.Minute {
		t.Fatalf("unexpected overrides %+v", opts)
	}
	if opts.ConnMaxIdleTime != 45*time.Second || opts.PingTimeout != time.Second {
		t.Fatalf("unexpected overrides %+v", opts)
	}
}

func TestOptionsFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("DB_PING_TIMEOUT", "soon")

	opts := OptionsFromEnv(DefaultOptions(ProfileLambda))
	if opts != DefaultOptions(ProfileLambda) {
		t.Fatalf("expected defaults to survive invalid env, got %+v", opts)
	}
}

func TestOpenLambdaReusesPool(t *testing.T) {
	useTestDriver(t)

	first, err := Open(context.Background(), "ignored", ProfileLambda)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	second, err := Open(context.Background(), "ignored", ProfileLambda)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if first != second {
		t.Fatalf("expected the lambda pool to be shared")
	}
}

func TestOpenLambdaRetriesAfterFailure(t *testing.T) {
	useTestDriver(t)
	var calls int32
	openDB = func(name, dsn string) (*sql.DB, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, driver.ErrBadConn
		}
		return sql.Open("dbtest", dsn)
	}

	if _, err := Open(context.Background(), "ignored", ProfileLambda); err == nil {
		t.Fatalf("expected first open to fail")
	}
	pool, err := Open(context.Background(), "ignored", ProfileLambda)
	if err != nil || pool == nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), "  ", DefaultOptions(ProfileServer))
	if !errs.IsConfig(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestConnectPingFailureIsUpstream(t *testing.T) {
	useTestDriver(t)

	_, err := Connect(context.Background(), "unreachable", DefaultOptions(ProfileServer))
	up, ok := errs.AsUpstream(err)
	if !ok {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if up.Provider != "postgres" || up.Op != "ping" {
		t.Fatalf("unexpected upstream error %+v", up)
	}
}
