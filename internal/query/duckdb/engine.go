// Package duckdb runs generated SQL against a parquet snapshot of the stock
// table in an in-memory DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tickerql/tickerql/internal/export"
	"github.com/tickerql/tickerql/internal/observability"
	"github.com/tickerql/tickerql/internal/query"
	"github.com/tickerql/tickerql/internal/stock"
	"github.com/tickerql/tickerql/internal/storage"
)

type Executor struct {
	Store       storage.Reader
	SnapshotKey string
}

// NewExecutor reads snapshots from store. An empty snapshotKey selects the
// key the loader publishes to.
func NewExecutor(store storage.Reader, snapshotKey string) *Executor {
	if strings.TrimSpace(snapshotKey) == "" {
		snapshotKey = export.SnapshotKey
	}
	return &Executor{Store: store, SnapshotKey: snapshotKey}
}

func (e *Executor) Execute(ctx context.Context, sqlText string) ([]query.Row, error) {
	start := time.Now()
	rows, err := e.execute(ctx, sqlText)
	observability.ObserveQueryExecution("duckdb", len(rows), time.Since(start), err)
	return rows, err
}

func (e *Executor) execute(ctx context.Context, sqlText string) ([]query.Row, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return nil, fmt.Errorf("sql is required")
	}
	if e.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	workDir, err := os.MkdirTemp("", "tickerql-query-")
	if err != nil {
		return nil, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath := filepath.Join(workDir, stock.TableName+".parquet")
	if err := e.download(ctx, localPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, stock.QuoteIdent(stock.TableName), quoteString(localPath))
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		return nil, fmt.Errorf("create view for table %q: %w", stock.TableName, err)
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	result := make([]query.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, query.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Executor) download(ctx context.Context, localPath string) error {
	reader, err := e.Store.Get(ctx, e.SnapshotKey)
	if err != nil {
		return fmt.Errorf("get snapshot %q: %w", e.SnapshotKey, err)
	}
	defer func() { _ = reader.Close() }()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local parquet file %q: %w", localPath, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	return file.Close()
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
