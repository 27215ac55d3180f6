package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tickerql/tickerql/internal/nl2sql"
	"github.com/tickerql/tickerql/internal/observability"
)

var ErrNoExecutor = errors.New("query executor is not configured")

// Resolution is the outcome of resolving one question. It encodes either as
// {"response": [...]} or as {"error": "...", "attempted_query": "..."}.
type Resolution struct {
	Rows           []Row
	Error          string
	AttemptedQuery string
}

func (r Resolution) Failed() bool {
	return r.Error != ""
}

func (r Resolution) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Error          string `json:"error"`
			AttemptedQuery string `json:"attempted_query"`
		}{Error: r.Error, AttemptedQuery: r.AttemptedQuery})
	}
	rows := r.Rows
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(struct {
		Response []Row `json:"response"`
	}{Response: rows})
}

// Resolver composes a SQL generator with a query executor.
type Resolver struct {
	Generator nl2sql.Generator
	Executor  Executor
	Logger    *slog.Logger
}

type Option func(*Resolver)

func WithGenerator(generator nl2sql.Generator) Option {
	return func(r *Resolver) { r.Generator = generator }
}

func WithExecutor(executor Executor) Option {
	return func(r *Resolver) { r.Executor = executor }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.Logger = logger }
}

// NewResolver falls back to nl2sql.DummyGenerator when no generator is given.
func NewResolver(opts ...Option) *Resolver {
	resolver := &Resolver{}
	for _, opt := range opts {
		opt(resolver)
	}
	if resolver.Generator == nil {
		resolver.Generator = nl2sql.DummyGenerator{}
	}
	if resolver.Logger == nil {
		resolver.Logger = slog.New(slog.DiscardHandler)
	}
	return resolver
}

// Resolve never returns a Go error: failures are reported in the Resolution
// together with the SQL that was attempted.
func (r *Resolver) Resolve(ctx context.Context, question string) Resolution {
	sql, err := r.Generator.GenerateSQL(ctx, question)
	if err != nil {
		r.Logger.WarnContext(ctx, "sql generation failed", slog.Any("error", err))
		observability.ObserveResolve("generation_error")
		return Resolution{Error: err.Error()}
	}
	r.Logger.DebugContext(ctx, "generated sql", slog.String("sql", sql))

	if r.Executor == nil {
		observability.ObserveResolve("execution_error")
		return Resolution{Error: ErrNoExecutor.Error(), AttemptedQuery: sql}
	}
	rows, err := r.Executor.Execute(ctx, sql)
	if err != nil {
		r.Logger.InfoContext(ctx, "generated sql failed",
			slog.String("sql", sql),
			slog.Any("error", err),
		)
		observability.ObserveResolve("execution_error")
		return Resolution{Error: err.Error(), AttemptedQuery: sql}
	}

	observability.ObserveResolve("ok")
	if rows == nil {
		rows = []Row{}
	}
	return Resolution{Rows: rows}
}
