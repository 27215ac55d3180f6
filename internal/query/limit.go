package query

import (
	"context"
	"fmt"
	"time"
)

// ErrTooManyRows is returned when a result exceeds the configured row cap.
type ErrTooManyRows struct {
	Limit int
}

func (e *ErrTooManyRows) Error() string {
	return fmt.Sprintf("result set too large: more than %d rows", e.Limit)
}

// MaxRows fails queries that return more than limit rows. A limit of zero or
// less disables the check.
func MaxRows(next Executor, limit int) Executor {
	if limit <= 0 {
		return next
	}
	return maxRowsExecutor{next: next, limit: limit}
}

type maxRowsExecutor struct {
	next  Executor
	limit int
}

func (e maxRowsExecutor) Execute(ctx context.Context, sql string) ([]Row, error) {
	rows, err := e.next.Execute(ctx, sql)
	if err != nil {
		return nil, err
	}
	if len(rows) > e.limit {
		return nil, &ErrTooManyRows{Limit: e.limit}
	}
	return rows, nil
}

// Timeout bounds each execution by d. A non-positive d disables it.
func Timeout(next Executor, d time.Duration) Executor {
	if d <= 0 {
		return next
	}
	return timeoutExecutor{next: next, timeout: d}
}

type timeoutExecutor struct {
	next    Executor
	timeout time.Duration
}

func (e timeoutExecutor) Execute(ctx context.Context, sql string) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.next.Execute(ctx, sql)
}
