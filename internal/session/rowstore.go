package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// MaxColumns is the widest row the store can hold.
const MaxColumns = 5

// RowStoreOptions configures the DuckDB database behind a RowStore.
type RowStoreOptions struct {
	// Path of the database file. Empty keeps the database in memory.
	Path        string
	Threads     int
	MemoryLimit string
}

// RowStore keeps the output rows of every stored run in one DuckDB table,
// keyed by run ID and ordered by sequence number.
type RowStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewRowStore opens the database and creates the rows table. Rows left over
// from a previous process are dropped.
func NewRowStore(opts RowStoreOptions, logger *zap.Logger) (*RowStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pragmas := []string{"PRAGMA enable_progress_bar=false"}
	if opts.Threads > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
	}
	if opts.MemoryLimit != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", strings.ReplaceAll(opts.MemoryLimit, "'", "")))
	}

	connector, err := duckdb.NewConnector(opts.Path, func(execer driver.ExecerContext) error {
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_rows (
			run_id VARCHAR NOT NULL,
			seq    INTEGER NOT NULL,
			c0     VARCHAR,
			c1     VARCHAR,
			c2     VARCHAR,
			c3     VARCHAR,
			c4     VARCHAR
		)`,
		`DELETE FROM run_rows`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare row table: %w", err)
		}
	}

	where := opts.Path
	if where == "" {
		where = ":memory:"
	}
	logger.Debug("row store ready", zap.String("path", where))

	return &RowStore{db: db, path: opts.Path, logger: logger}, nil
}

// Insert appends rows for runID in order using the DuckDB Appender.
func (s *RowStore) Insert(ctx context.Context, runID string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "run_rows")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, row := range rows {
			if len(row) > MaxColumns {
				return fmt.Errorf("row %d has %d columns, max %d", i, len(row), MaxColumns)
			}
			values := make([]driver.Value, 0, MaxColumns+2)
			values = append(values, runID, int32(i))
			for c := 0; c < MaxColumns; c++ {
				if c < len(row) {
					values = append(values, row[c])
				} else {
					values = append(values, nil)
				}
			}
			if err := appender.AppendRow(values...); err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		// Closing the appender flushed the rows appended before the failure.
		if derr := s.Delete(context.WithoutCancel(ctx), runID); derr != nil {
			err = errors.Join(err, derr)
		}
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

// Page returns up to limit rows of runID starting at offset, each cut to
// width columns.
func (s *RowStore) Page(ctx context.Context, runID string, width, offset, limit int) ([][]string, error) {
	if width < 1 || width > MaxColumns {
		return nil, fmt.Errorf("invalid row width %d", width)
	}

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	query := fmt.Sprintf(`
		SELECT c0, c1, c2, c3, c4
		FROM run_rows
		WHERE run_id = ?
		ORDER BY seq
		LIMIT %d OFFSET %d`, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	out := make([][]string, 0, limit)
	for rows.Next() {
		var cols [MaxColumns]sql.NullString
		if err := rows.Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4]); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make([]string, width)
		for i := range row {
			row[i] = cols[i].String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Delete drops every row of runID.
func (s *RowStore) Delete(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM run_rows WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("deleting rows of %s: %w", shortID(runID), err)
	}
	return nil
}

// Close closes the database. A file-backed database is removed.
func (s *RowStore) Close() error {
	err := s.db.Close()
	if s.path != "" {
		for _, p := range []string{s.path, s.path + ".wal"} {
			if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
				s.logger.Warn("failed to remove row store file", zap.String("path", p), zap.Error(rmErr))
			}
		}
	}
	return err
}
