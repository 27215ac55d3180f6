// Package postgres runs generated SQL against the primary store inside a
// transaction that is always rolled back.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tickerql/tickerql/internal/observability"
	"github.com/tickerql/tickerql/internal/query"
)

type Executor struct {
	db *sql.DB
}

func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// Execute runs sqlText and returns its rows. Any write the statement makes
// is discarded because the transaction never commits.
func (e *Executor) Execute(ctx context.Context, sqlText string) ([]query.Row, error) {
	start := time.Now()
	rows, err := e.execute(ctx, sqlText)
	observability.ObserveQueryExecution("postgres", len(rows), time.Since(start), err)
	return rows, err
}

func (e *Executor) execute(ctx context.Context, sqlText string) ([]query.Row, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, fmt.Errorf("sql is required")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	result := make([]query.Row, 0)
	if len(columns) == 0 {
		// Statements like DELETE report no result columns.
		return result, rows.Err()
	}
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
