// Package loader replaces the stock table with the contents of a CSV file.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tickerql/tickerql/internal/export"
	"github.com/tickerql/tickerql/internal/observability"
	"github.com/tickerql/tickerql/internal/stock"
	"github.com/tickerql/tickerql/internal/storage"
)

const SuccessMessage = "Data loaded successfully."

// Repository is the part of the relational store the loader writes to.
type Repository interface {
	ReplaceAll(ctx context.Context, records []stock.Record) (int, error)
	ListAll(ctx context.Context) ([]stock.Record, error)
}

// FileNotFoundError is returned when the CSV path does not exist.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf(`File "%s" does not exist.`, e.Path)
}

type Service struct {
	Repository Repository
	// ObjectStore receives a parquet snapshot after each load when set.
	ObjectStore storage.ObjectStore
	Logger      *slog.Logger
}

type Result struct {
	LoadID   string
	Path     string
	Records  int
	Duration time.Duration
	Snapshot *export.PublishResult
}

func (s *Service) LoadFile(ctx context.Context, path string) (Result, error) {
	if s.Repository == nil {
		return Result{}, fmt.Errorf("repository is required")
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	start := time.Now()
	loadID := uuid.NewString()
	logger = logger.With(slog.String("load_id", loadID), slog.String("path", path))

	records, err := readFile(path)
	if err != nil {
		return Result{}, err
	}

	inserted, err := s.Repository.ReplaceAll(ctx, records)
	if err != nil {
		return Result{}, fmt.Errorf("replace stock records: %w", err)
	}
	observability.ObserveLoadedRecords(inserted)
	logger.InfoContext(ctx, "stock records loaded", slog.Int("records", inserted))

	result := Result{LoadID: loadID, Path: path, Records: inserted}
	// An emptied table still republishes, so the snapshot never outlives the rows.
	if s.ObjectStore != nil {
		snapshot, err := s.publish(ctx)
		if err != nil {
			return Result{}, err
		}
		logger.InfoContext(ctx, "stock snapshot published",
			slog.String("object_path", snapshot.Key),
			slog.Int64("record_count", snapshot.RecordCount),
			slog.Int64("size_bytes", snapshot.SizeBytes),
		)
		result.Snapshot = &snapshot
	}
	result.Duration = time.Since(start)
	return result, nil
}

// publish exports the table as stored, so the snapshot keeps date order.
func (s *Service) publish(ctx context.Context) (export.PublishResult, error) {
	records, err := s.Repository.ListAll(ctx)
	if err != nil {
		return export.PublishResult{}, fmt.Errorf("list stock records: %w", err)
	}
	snapshot, err := export.Publish(ctx, s.ObjectStore, records)
	if err != nil {
		return export.PublishResult{}, fmt.Errorf("export snapshot: %w", err)
	}
	return snapshot, nil
}

func readFile(path string) ([]stock.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	records, err := stock.ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}
