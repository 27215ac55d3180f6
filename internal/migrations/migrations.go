// Package migrations applies the embedded, versioned SQL scripts that create
// the stock table in the relational store.
package migrations

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const versionTable = "tickerql_schema_migrations"

// Files are named NNNNNN_name.up.sql and NNNNNN_name.down.sql.
var fileNamePattern = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

// State describes one known migration. AppliedAt is nil while pending.
type State struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

type script struct {
	version int64
	name    string
	up      string
	down    string
}

// step is one script plus the bookkeeping statement run in the same tx.
type step struct {
	version int64
	body    string
	record  string
}

// Up applies pending migrations in version order. steps <= 0 applies all.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	scripts, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}

	var plan []step
	for _, s := range scripts {
		if _, done := applied[s.version]; done {
			continue
		}
		plan = append(plan, step{version: s.version, body: s.up, record: `INSERT INTO ` + versionTable + ` (version) VALUES ($1)`})
	}
	return execute(ctx, db, limit(plan, steps), "apply")
}

// Down reverts the most recently applied migrations. steps <= 0 reverts one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	scripts, applied, err := r.prepare(ctx, db)
	if err != nil {
		return 0, err
	}
	if steps <= 0 {
		steps = 1
	}

	byVersion := make(map[int64]script, len(scripts))
	for _, s := range scripts {
		byVersion[s.version] = s
	}
	versions := make([]int64, 0, len(applied))
	for version := range applied {
		versions = append(versions, version)
	}
	slices.Sort(versions)
	slices.Reverse(versions)

	var plan []step
	for _, version := range versions {
		s, ok := byVersion[version]
		if !ok {
			return 0, fmt.Errorf("applied migration %d has no script", version)
		}
		plan = append(plan, step{version: version, body: s.down, record: `DELETE FROM ` + versionTable + ` WHERE version = $1`})
	}
	return execute(ctx, db, limit(plan, steps), "rollback")
}

func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]State, error) {
	scripts, applied, err := r.prepare(ctx, db)
	if err != nil {
		return nil, err
	}
	states := make([]State, 0, len(scripts))
	for _, s := range scripts {
		state := State{Version: s.version, Name: s.name}
		if at, ok := applied[s.version]; ok {
			state.Applied = true
			state.AppliedAt = &at
		}
		states = append(states, state)
	}
	return states, nil
}

// prepare loads the scripts, makes sure the version table exists and reads
// which versions are applied.
func (r *Runner) prepare(ctx context.Context, db *sql.DB) ([]script, map[int64]time.Time, error) {
	scripts, err := loadScripts(r.fsys)
	if err != nil {
		return nil, nil, err
	}
	ddl := `CREATE TABLE IF NOT EXISTS ` + versionTable + ` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", versionTable, err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	return scripts, applied, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int64]time.Time, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, applied_at FROM `+versionTable+` ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", versionTable, err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int64]time.Time)
	for rows.Next() {
		var (
			version   int64
			appliedAt time.Time
		)
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", versionTable, err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

func limit(plan []step, steps int) []step {
	if steps > 0 && len(plan) > steps {
		return plan[:steps]
	}
	return plan
}

// execute runs each step in its own transaction and stops at the first
// failure, returning how many steps committed.
func execute(ctx context.Context, db *sql.DB, plan []step, verb string) (int, error) {
	for i, st := range plan {
		if err := runStep(ctx, db, st); err != nil {
			return i, fmt.Errorf("%s migration %d: %w", verb, st.version, err)
		}
	}
	return len(plan), nil
}

func runStep(ctx context.Context, db *sql.DB, st step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, st.body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, st.record, st.version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}

// loadScripts pairs the up and down files under sql/ and sorts them by
// version. Files not matching the naming pattern are ignored.
func loadScripts(fsys fs.FS) ([]script, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	found := map[int64]*script{}
	for _, entry := range entries {
		m := fileNamePattern.FindStringSubmatch(entry.Name())
		if entry.IsDir() || m == nil {
			continue
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %q: bad version: %w", entry.Name(), err)
		}
		body, err := fs.ReadFile(fsys, "sql/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		s, ok := found[version]
		if !ok {
			s = &script{version: version, name: m[2]}
			found[version] = s
		} else if s.name != m[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, s.name, m[2])
		}
		if m[3] == "up" {
			s.up = string(body)
		} else {
			s.down = string(body)
		}
	}

	scripts := make([]script, 0, len(found))
	for _, s := range found {
		switch {
		case strings.TrimSpace(s.up) == "":
			return nil, fmt.Errorf("migration %d missing up SQL", s.version)
		case strings.TrimSpace(s.down) == "":
			return nil, fmt.Errorf("migration %d missing down SQL", s.version)
		}
		scripts = append(scripts, *s)
	}
	slices.SortFunc(scripts, func(a, b script) int { return cmp.Compare(a.version, b.version) })
	return scripts, nil
}
