package migrations

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/tickerql/tickerql/internal/stock"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"sql/000002_two.up.sql":   {Data: []byte("SELECT 2;")},
		"sql/000002_two.down.sql": {Data: []byte("SELECT -2;")},
		"sql/000001_one.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_one.down.sql": {Data: []byte("SELECT -1;")},
		"sql/README":              {Data: []byte("ignored")},
	}
}

func TestLoadScriptsSortsAndPairsUpDown(t *testing.T) {
	items, err := loadScripts(testFS())
	if err != nil {
		t.Fatalf("loadScripts() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if items[0].version != 1 || items[1].version != 2 {
		t.Fatalf("unexpected migration order: %+v", items)
	}
	if items[0].name != "one" || items[0].down != "SELECT -1;" {
		t.Fatalf("unexpected first migration: %+v", items[0])
	}
}

func TestLoadScriptsErrorsWhenDownMissing(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_one.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := loadScripts(fsys)
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "missing down SQL") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmbeddedMigrationsMatchPromptSchema(t *testing.T) {
	items, err := loadScripts(embeddedFS)
	if err != nil {
		t.Fatalf("loadScripts() error = %v", err)
	}
	if len(items) < 2 {
		t.Fatalf("len(items) = %d", len(items))
	}

	var createTable string
	for _, line := range strings.Split(stock.TableSchema, "\n") {
		if strings.HasPrefix(line, "CREATE TABLE") {
			createTable = line
		}
	}
	if createTable == "" {
		t.Fatal("TableSchema has no CREATE TABLE statement")
	}
	if strings.TrimSpace(items[0].up) != createTable {
		t.Fatalf("migration 1 drifted from the prompt schema:\n%s\n%s", items[0].up, createTable)
	}
	if !strings.Contains(items[1].up, `ON "core_teslastockdata" ("date")`) {
		t.Fatalf("migration 2 does not index date: %s", items[1].up)
	}
}

func TestUpAppliesPendingMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS tickerql_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, applied_at FROM tickerql_schema_migrations ORDER BY version")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(int64(1), appliedAt))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT 2;")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickerql_schema_migrations (version) VALUES ($1)")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := &Runner{fsys: testFS()}
	applied, err := runner.Up(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestDownRollsBackLatestMigration(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS tickerql_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, applied_at FROM tickerql_schema_migrations ORDER BY version")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(int64(1), appliedAt).AddRow(int64(2), appliedAt))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT -2;")).WillReturnError(errDown)
	mock.ExpectRollback()

	runner := &Runner{fsys: testFS()}
	rolledBack, err := runner.Down(context.Background(), db, 0)
	if err == nil || !strings.Contains(err.Error(), "rollback migration 2") {
		t.Fatalf("Down() error = %v", err)
	}
	if rolledBack != 0 {
		t.Fatalf("rolledBack = %d", rolledBack)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestStatusMarksAppliedVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS tickerql_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, applied_at FROM tickerql_schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(int64(1), appliedAt))

	runner := &Runner{fsys: testFS()}
	states, err := runner.Status(context.Background(), db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(states) != 2 || !states[0].Applied || states[1].Applied {
		t.Fatalf("states = %+v", states)
	}
	if states[0].AppliedAt == nil || !states[0].AppliedAt.Equal(appliedAt) || states[1].AppliedAt != nil {
		t.Fatalf("applied_at = %v / %v", states[0].AppliedAt, states[1].AppliedAt)
	}
}

func TestUpHonorsSteps(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS tickerql_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, applied_at FROM tickerql_schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT 1;")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickerql_schema_migrations (version) VALUES ($1)")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := &Runner{fsys: testFS()}
	applied, err := runner.Up(context.Background(), db, 1)
	if err != nil || applied != 1 {
		t.Fatalf("Up() = %d, %v", applied, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

var (
	errDown   = errors.New("relation does not exist")
	appliedAt = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
)
