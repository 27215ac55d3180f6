package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestExecuteReturnsRowsAndRollsBack(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := NewExecutor(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) as my_count FROM core_teslastockdata`)).
		WillReturnRows(sqlmock.NewRows([]string{"my_count"}).AddRow(int64(3)))
	mock.ExpectRollback()

	rows, err := executor.Execute(context.Background(), `SELECT count(*) as my_count FROM core_teslastockdata`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if value, ok := rows[0].Get("my_count"); !ok || value != int64(3) {
		t.Fatalf("my_count = %#v", value)
	}
	assertSQLMock(t, mock)
}

func TestExecuteShapesDateColumns(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := NewExecutor(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT date, close`).
		WillReturnRows(sqlmock.NewRows([]string{"date", "close"}).
			AddRow(time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC), 10.006667))
	mock.ExpectRollback()

	rows, err := executor.Execute(context.Background(), "SELECT date, close FROM core_teslastockdata ORDER BY date ASC LIMIT 1")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	body, err := json.Marshal(rows)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `[{"date":"2014-01-02","close":10.006667}]` {
		t.Fatalf("body = %s", body)
	}
	assertSQLMock(t, mock)
}

func TestExecuteDiscardsWrites(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := NewExecutor(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM core_teslastockdata`)).
		WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectRollback()

	rows, err := executor.Execute(context.Background(), `DELETE FROM core_teslastockdata`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("rows = %#v, want empty", rows)
	}
	assertSQLMock(t, mock)
}

func TestExecuteReturnsDriverErrorAndRollsBack(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := NewExecutor(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT DATEADD`).
		WillReturnError(errors.New(`function dateadd(unknown, integer, date) does not exist`))
	mock.ExpectRollback()

	_, err := executor.Execute(context.Background(), `SELECT DATEADD(DAY, 0, "core_teslastockdata".date) AS most_recent_date;`)
	if err == nil || err.Error() != `function dateadd(unknown, integer, date) does not exist` {
		t.Fatalf("error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteRejectsBlankSQL(t *testing.T) {
	db, mock := newSQLMock(t)
	if _, err := NewExecutor(db).Execute(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank sql")
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
