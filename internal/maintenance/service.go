// Package maintenance verifies that the parquet snapshot in the object store
// still matches the stock table it was exported from.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tickerql/tickerql/internal/export"
	"github.com/tickerql/tickerql/internal/stock"
	"github.com/tickerql/tickerql/internal/storage"
)

// Counter reports how many rows the stock table holds.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

type Config struct {
	IntegrityInterval time.Duration
	SnapshotKey       string
}

type Service struct {
	Store       Counter
	ObjectStore storage.Reader
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
}

type IntegritySummary struct {
	SnapshotKey         string    `json:"snapshot_key"`
	CheckedAt           time.Time `json:"checked_at"`
	SizeBytes           int64     `json:"size_bytes"`
	SnapshotRecords     int       `json:"snapshot_records"`
	StoreRecords        int64     `json:"store_records"`
	MinDate             string    `json:"min_date,omitempty"`
	MaxDate             string    `json:"max_date,omitempty"`
	Missing             bool      `json:"missing"`
	SizeMismatch        bool      `json:"size_mismatch"`
	RecordMismatch      bool      `json:"record_mismatch"`
	OperationalFailures int       `json:"operational_failures"`
}

// Run checks the snapshot every Config.IntegrityInterval until ctx is done.
// It returns immediately when the interval is zero.
func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()
	if s.Config.IntegrityInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.Config.IntegrityInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := s.RunIntegrityCheckOnce(ctx)
			if err != nil {
				s.Logger.ErrorContext(ctx, "integrity cycle failed", slog.Any("error", err), slog.Any("summary", summary))
				continue
			}
			s.Logger.InfoContext(ctx, "integrity cycle completed", slog.Any("summary", summary))
		}
	}
}

func (s *Service) RunIntegrityCheckOnce(ctx context.Context) (IntegritySummary, error) {
	s.ensureDefaults()
	if s.Store == nil {
		return IntegritySummary{}, fmt.Errorf("store is required")
	}
	if s.ObjectStore == nil {
		return IntegritySummary{}, fmt.Errorf("object store is required")
	}

	summary := IntegritySummary{SnapshotKey: s.Config.SnapshotKey, CheckedAt: s.Clock().UTC()}
	var issues []string

	storeRecords, err := s.Store.Count(ctx)
	if err != nil {
		summary.OperationalFailures++
		issues = append(issues, fmt.Sprintf("count %s: %v", stock.TableName, err))
	}
	summary.StoreRecords = storeRecords

	records, err := s.readSnapshot(ctx, &summary)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		summary.Missing = true
		issues = append(issues, fmt.Sprintf("snapshot %s is missing", summary.SnapshotKey))
	case err != nil:
		summary.OperationalFailures++
		issues = append(issues, fmt.Sprintf("read snapshot %s: %v", summary.SnapshotKey, err))
	default:
		summary.SnapshotRecords = len(records)
		summary.MinDate, summary.MaxDate = dateRange(records)
		if summary.SizeMismatch {
			issues = append(issues, fmt.Sprintf("snapshot %s size mismatch", summary.SnapshotKey))
		}
		if summary.OperationalFailures == 0 && int64(summary.SnapshotRecords) != summary.StoreRecords {
			summary.RecordMismatch = true
			issues = append(issues, fmt.Sprintf("snapshot has %d records, %s has %d", summary.SnapshotRecords, stock.TableName, summary.StoreRecords))
		}
	}

	observeIntegrity(summary)
	if len(issues) > 0 {
		return summary, fmt.Errorf("integrity check found %d issue(s): %s", len(issues), strings.Join(issues, "; "))
	}
	return summary, nil
}

func (s *Service) readSnapshot(ctx context.Context, summary *IntegritySummary) ([]stock.Record, error) {
	info, data, err := storage.ReadObject(ctx, s.ObjectStore, summary.SnapshotKey)
	if err != nil {
		return nil, err
	}
	summary.SizeBytes = int64(len(data))
	summary.SizeMismatch = info.Size > 0 && info.Size != summary.SizeBytes
	return export.DecodeParquet(data)
}

func dateRange(records []stock.Record) (string, string) {
	if len(records) == 0 {
		return "", ""
	}
	minDate, maxDate := records[0].Date, records[0].Date
	for _, record := range records[1:] {
		if record.Date.Before(minDate) {
			minDate = record.Date
		}
		if record.Date.After(maxDate) {
			maxDate = record.Date
		}
	}
	return minDate.Format(stock.DateLayout), maxDate.Format(stock.DateLayout)
}

func (s *Service) ensureDefaults() {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Logger == nil {
		s.Logger = slog.New(slog.DiscardHandler)
	}
	if strings.TrimSpace(s.Config.SnapshotKey) == "" {
		s.Config.SnapshotKey = export.SnapshotKey
	}
}
