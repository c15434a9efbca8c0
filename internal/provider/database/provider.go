// Package database provides the postgres provisioning provider for the
// backend profile. It ensures the application database exists and
// carries the mirror tables the reporting queries read, so the API can
// serve history without scanning DynamoDB.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cryonith/groundwork/internal/domain/step"
	"github.com/cryonith/groundwork/internal/domain/target"
)

// Step IDs exported for cross-provider dependencies.
const (
	StepIDDatabase = "database:ensure:database"
	StepIDSchema   = "database:ensure:schema"
)

const pingTimeout = 2 * time.Second

// Row is the scannable result of a single-row query.
type Row interface {
	Scan(dest ...any) error
}

// DB is the slice of a sql handle the steps use.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) Row
	Close() error
}

// Opener opens a database handle for a connection URL.
type Opener func(ctx context.Context, url string) (DB, error)

// sqlDB adapts *sql.DB to the Row-returning interface.
type sqlDB struct {
	*sql.DB
}

func (d sqlDB) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	return d.DB.QueryRowContext(ctx, query, args...)
}

// OpenPgx opens a handle through the pgx stdlib driver and verifies
// the server answers a ping.
func OpenPgx(ctx context.Context, connURL string) (DB, error) {
	db, err := sql.Open("pgx", connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqlDB{db}, nil
}

// Provider compiles postgres steps from the backend's database URL.
type Provider struct {
	opener Opener
}

// NewProvider creates a new database provider.
func NewProvider(opener Opener) *Provider {
	return &Provider{opener: opener}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "database"
}

// Compile generates the database and schema steps. A target without a
// database URL compiles to nothing.
func (p *Provider) Compile(t *target.Descriptor) ([]step.Step, error) {
	urlSecret := t.Backend().DatabaseURL
	if urlSecret.IsZero() {
		return nil, nil
	}

	raw := urlSecret.Reveal()

	u, err := url.Parse(raw)
	if err != nil {
		// The parse error echoes the url, credentials included.
		return nil, errors.New("backend database url is not a valid url")
	}

	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return nil, errors.New("backend database url names no database")
	}

	// CREATE DATABASE has to run from a session on another database.
	maintenance := *u
	maintenance.Path = "/postgres"

	return []step.Step{
		NewDatabaseStep(name, maintenance.String(), p.opener),
		NewSchemaStep(raw, p.opener),
	}, nil
}

// Ensure Provider implements step.Provider.
var _ step.Provider = (*Provider)(nil)
