package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vxgate/vxgate/internal/document"
)

// SQLiteStore stores documents as JSON text in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
	q  queryBuilder
}

// NewSQLite opens the database at path, runs migrations and returns a ready store.
// Use ":memory:" for a private in-memory database.
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY and keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := Migrate(ctx, db, "sqlite", logger); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, q: newQueryBuilder(sqliteDialect)}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, collection string, doc document.Document) (string, error) {
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

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isSQLiteUniqueViolation(err) {
			return "", fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return "", err
	}
	return id, nil
}

// FindOne implements Store.
func (s *SQLiteStore) FindOne(ctx context.Context, collection string, filter Filter) (document.Document, error) {
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
func (s *SQLiteStore) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]document.Document, error) {
	query, args, err := s.q.selectDocs(collection, filter, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStore) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	query, args, err := s.q.countDocs(collection, filter)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Remove implements Store.
func (s *SQLiteStore) Remove(ctx context.Context, collection string, filter Filter) (int64, error) {
	query, args, err := s.q.deleteDocs(collection, filter)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	// The only constraints on the table are the primary key and the unique indexes.
	return errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
