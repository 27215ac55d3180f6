//go:build integration

package s3

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tickerql/tickerql/internal/config"
	"github.com/tickerql/tickerql/internal/export"
	"github.com/tickerql/tickerql/internal/query/duckdb"
	"github.com/tickerql/tickerql/internal/stock"
	"github.com/tickerql/tickerql/internal/storage"
)

func TestSnapshotRoundTripAgainstMinIO(t *testing.T) {
	endpoint := envOr("TICKERQL_TEST_S3_ENDPOINT", "")
	if endpoint == "" {
		t.Skip("TICKERQL_TEST_S3_ENDPOINT is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := New(ctx, config.ObjectStoreConfig{
		Endpoint:         endpoint,
		Region:           envOr("TICKERQL_TEST_S3_REGION", "us-east-1"),
		Bucket:           envOr("TICKERQL_TEST_S3_BUCKET", "tickerql-it"),
		AccessKeyID:      envOr("TICKERQL_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey:  envOr("TICKERQL_TEST_S3_SECRET_KEY", "miniostorage"),
		Prefix:           "integration-tests",
		AutoCreateBucket: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	records := []stock.Record{
		{Date: time.Date(2014, time.January, 2, 0, 0, 0, 0, time.UTC), Close: 10.006667, Volume: 92826000},
		{Date: time.Date(2014, time.January, 3, 0, 0, 0, 0, time.UTC), Close: 9.970667, Volume: 72783000},
	}
	published, err := export.Publish(ctx, store, records)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	stat, err := store.Stat(ctx, published.Key)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.Size != published.SizeBytes {
		t.Fatalf("Stat().Size = %d, want %d", stat.Size, published.SizeBytes)
	}
	if stat.Metadata[export.MetaRecordCount] != "2" || stat.Metadata[export.MetaMaxDate] != "2014-01-03" {
		t.Fatalf("Stat().Metadata = %#v", stat.Metadata)
	}

	rows, err := duckdb.NewExecutor(store, published.Key).Execute(ctx, "SELECT MAX(close) AS max_close FROM core_teslastockdata")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if value, _ := rows[0].Get("max_close"); value != 10.006667 {
		t.Fatalf("max_close = %#v", value)
	}

	if err := store.Delete(ctx, published.Key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Stat(ctx, published.Key); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() after delete error = %v, want ErrObjectNotFound", err)
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
