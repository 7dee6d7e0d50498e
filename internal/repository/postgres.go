package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver used by migrations
	"github.com/oklog/ulid/v2"

	"github.com/vxgate/vxgate/internal/document"
)

// PostgresConfig holds connection pool settings.
type PostgresConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// PostgresStore stores documents as JSONB rows in a single table.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    queryBuilder
}

// NewPostgres connects, runs migrations and returns a ready store.
func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migratePostgres(ctx, cfg.URL, logger); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, q: newQueryBuilder(postgresDialect)}, nil
}

func migratePostgres(ctx context.Context, url string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	return Migrate(ctx, db, "postgres", logger)
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, collection string, doc document.Document) (string, error) {
	id := doc.ID()
	if id == "" {
		id = ulid.Make().String()
	}

	raw, err := json.Marshal(doc.Without(document.IDField))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	query, args, err := s.q.upsertDoc(collection, id, raw)
	if err != nil {
		return "", err
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return "", err
	}
	return id, nil
}

// FindOne implements Store.
func (s *PostgresStore) FindOne(ctx context.Context, collection string, filter Filter) (document.Document, error) {
	docs, err := s.Find(ctx, collection, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// Find implements Store.
func (s *PostgresStore) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]document.Document, error) {
	query, args, err := s.q.selectDocs(collection, filter, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	query, args, err := s.q.countDocs(collection, filter)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Remove implements Store.
func (s *PostgresStore) Remove(ctx context.Context, collection string, filter Filter) (int64, error) {
	query, args, err := s.q.deleteDocs(collection, filter)
	if err != nil {
		return 0, err
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// rowScanner is satisfied by pgx.Rows and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (document.Document, error) {
	var (
		id  string
		raw []byte
	)
	if err := row.Scan(&id, &raw); err != nil {
		return nil, err
	}

	doc, err := document.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc[document.IDField] = id
	return doc, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	// PostgreSQL error code 23505 is unique_violation
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
