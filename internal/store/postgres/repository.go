package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/tickerql/tickerql/internal/stock"
)

// insertBatchSize keeps a multi-row INSERT well below the 65535 bind
// parameter limit of the Postgres protocol.
var insertBatchSize = 500

type dbTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store db: %w", err)
	}
	return nil
}

// ReplaceAll deletes every stock record and inserts records in their place.
// Both steps share one transaction, so a failed load leaves the previous data.
func (r *Repository) ReplaceAll(ctx context.Context, records []stock.Record) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+stock.QuoteIdent(stock.TableName)); err != nil {
		return 0, fmt.Errorf("delete stock records: %w", err)
	}

	inserted := 0
	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))
		n, err := insertBatch(ctx, tx, records[start:end])
		if err != nil {
			return inserted, err
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

func insertBatch(ctx context.Context, q dbTX, records []stock.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	query, args := buildInsert(records)
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("insert stock records: %w", err)
	}
	return len(records), nil
}

func buildInsert(records []stock.Record) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(stock.QuoteIdent(stock.TableName))
	b.WriteString(" (")
	b.WriteString(quotedColumnList())
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(stock.Columns))
	for i, record := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range stock.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(len(args) + j + 1))
		}
		b.WriteByte(')')
		args = append(args, record.Values()...)
	}
	return b.String(), args
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+stock.QuoteIdent(stock.TableName)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count stock records: %w", err)
	}
	return count, nil
}

// ListAll returns every record ordered by date.
func (r *Repository) ListAll(ctx context.Context) ([]stock.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT "id", `+quotedColumnList()+` FROM `+stock.QuoteIdent(stock.TableName)+` ORDER BY "date" ASC, "id" ASC`)
	if err != nil {
		return nil, fmt.Errorf("list stock records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]stock.Record, 0)
	for rows.Next() {
		var record stock.Record
		if err := rows.Scan(
			&record.ID, &record.Date, &record.Open, &record.High, &record.Low, &record.Close, &record.Volume,
			&record.RSI7, &record.RSI14, &record.CCI7, &record.CCI14,
			&record.SMA50, &record.EMA50, &record.SMA100, &record.EMA100,
			&record.MACD, &record.Bollinger, &record.TrueRange, &record.ATR7, &record.ATR14,
			&record.NextDayClose,
		); err != nil {
			return nil, fmt.Errorf("scan stock record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock records: %w", err)
	}
	return records, nil
}

func quotedColumnList() string {
	quoted := make([]string, len(stock.Columns))
	for i, column := range stock.Columns {
		quoted[i] = stock.QuoteIdent(column)
	}
	return strings.Join(quoted, ", ")
}
