// Package postgres provides a PostgreSQL implementation of document.Store.
// Documents of every collection live in one JSONB table; unique fields are
// enforced by partial expression indexes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihaimyh/stripecustomers/pkg/document"
)

const uniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
)`

// Storage implements document.Store and document.Indexer using PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// AutoMigrate creates the documents table on New
	AutoMigrate bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	// Parse connection string
	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	// Apply pool settings
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	// Create connection pool
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{
		pool:   pool,
		config: config,
	}

	if config.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return s, nil
}

// Migrate creates the documents table if it does not exist
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// Close closes the PostgreSQL connection pool
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Insert implements document.Store
func (s *Storage) Insert(ctx context.Context, collection, id string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, payload)
	if err != nil {
		return mapError(err, collection, id)
	}
	return nil
}

// Replace implements document.Store
func (s *Storage) Replace(ctx context.Context, collection, id string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET data = $3, updated_at = NOW()
			WHERE collection = $1 AND id = $2`,
		collection, id, payload)
	if err != nil {
		return mapError(err, collection, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", document.ErrNotFound, collection, id)
	}
	return nil
}

// Get implements document.Store
func (s *Storage) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", document.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return data, nil
}

// EnsureUniqueIndex implements document.Indexer.
// The index covers one collection and skips NULL and empty values.
func (s *Storage) EnsureUniqueIndex(ctx context.Context, collection, field string) error {
	stmt, err := uniqueIndexSQL(collection, field)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return mapError(err, collection, field)
	}
	return nil
}

// Ping checks the PostgreSQL connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func uniqueIndexSQL(collection, field string) (string, error) {
	if err := document.ValidatePath(field); err != nil {
		return "", err
	}

	segs := strings.Split(field, ".")
	for i, seg := range segs {
		seg = strings.ReplaceAll(seg, `\`, `\\`)
		segs[i] = `"` + strings.ReplaceAll(seg, `"`, `\"`) + `"`
	}
	path := quoteLiteral("{" + strings.Join(segs, ",") + "}")
	expr := fmt.Sprintf("(data #>> %s)", path)

	return fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS %s ON documents (%s) WHERE collection = %s AND jsonb_typeof(data #> %s) = 'string' AND %s <> ''`,
		pgx.Identifier{indexName(collection, field)}.Sanitize(),
		expr, quoteLiteral(collection), path, expr,
	), nil
}

// indexName derives a stable identifier within the 63 byte limit
func indexName(collection, field string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(collection + "\x00" + field))
	return fmt.Sprintf("documents_unique_%x", h.Sum64())
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func mapError(err error, collection, key string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s/%s: %s", document.ErrDuplicateKey, collection, key, pgErr.ConstraintName)
	}
	return fmt.Errorf("failed to write %s/%s: %w", collection, key, err)
}
