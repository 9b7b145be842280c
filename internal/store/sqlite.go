package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mohammed-shakir/geosync/internal/core/geom"
)

type SQLite struct {
	db      *sql.DB
	version int
}

var _ Store = (*SQLite)(nil)

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer at a time; readers share the same connection
	db.SetMaxOpenConns(1)

	v, err := migrate(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &SQLite{db: db, version: v}, nil
}

func (s *SQLite) SchemaVersion() int { return s.version }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

// rowsAffected maps a zero-row update or delete to ErrNotFound.
func rowsAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", what, id, err)
}

// encodePoints stores a vertex list as [[x,y],...] JSON text.
func encodePoints(pts []geom.Point) (string, error) {
	if len(pts) == 0 {
		return "", nil
	}
	b, err := json.Marshal(geom.Positions(pts))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodePoints(raw string) ([]geom.Point, error) {
	if raw == "" {
		return nil, nil
	}
	var coords [][]float64
	if err := json.Unmarshal([]byte(raw), &coords); err != nil {
		return nil, err
	}
	return geom.ParsePositions(coords)
}
