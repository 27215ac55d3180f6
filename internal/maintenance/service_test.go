package maintenance

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tickerql/tickerql/internal/export"
	"github.com/tickerql/tickerql/internal/stock"
	"github.com/tickerql/tickerql/internal/storage"
)

func TestRunIntegrityCheckOnceSuccess(t *testing.T) {
	objects := newFakeObjectStore(t, testRecords())
	checkedAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	svc := &Service{
		Store:       fakeCounter{count: 2},
		ObjectStore: objects,
		Clock:       func() time.Time { return checkedAt },
	}

	summary, err := svc.RunIntegrityCheckOnce(context.Background())
	if err != nil {
		t.Fatalf("RunIntegrityCheckOnce() error = %v", err)
	}
	if summary.SnapshotKey != export.SnapshotKey {
		t.Fatalf("SnapshotKey = %q", summary.SnapshotKey)
	}
	if !summary.CheckedAt.Equal(checkedAt) {
		t.Fatalf("CheckedAt = %s", summary.CheckedAt)
	}
	if summary.SnapshotRecords != 2 || summary.StoreRecords != 2 {
		t.Fatalf("records snapshot=%d store=%d", summary.SnapshotRecords, summary.StoreRecords)
	}
	if summary.MinDate != "2014-01-02" || summary.MaxDate != "2014-01-03" {
		t.Fatalf("date range = %s..%s", summary.MinDate, summary.MaxDate)
	}
	if summary.SizeBytes != int64(len(objects.objects[export.SnapshotKey])) {
		t.Fatalf("SizeBytes = %d", summary.SizeBytes)
	}
	if summary.Missing || summary.SizeMismatch || summary.RecordMismatch || summary.OperationalFailures != 0 {
		t.Fatalf("unexpected summary values: %+v", summary)
	}
}

func TestRunIntegrityCheckOnceDetectsMissingSnapshot(t *testing.T) {
	svc := &Service{
		Store:       fakeCounter{count: 2},
		ObjectStore: &fakeObjectStore{objects: map[string][]byte{}},
	}

	summary, err := svc.RunIntegrityCheckOnce(context.Background())
	if err == nil {
		t.Fatal("expected integrity error")
	}
	if !summary.Missing {
		t.Fatalf("Missing = false, summary=%+v", summary)
	}
	if !strings.Contains(err.Error(), "is missing") {
		t.Fatalf("error = %v", err)
	}
}

func TestRunIntegrityCheckOnceDetectsStaleSnapshot(t *testing.T) {
	svc := &Service{
		Store:       fakeCounter{count: 5},
		ObjectStore: newFakeObjectStore(t, testRecords()),
	}

	summary, err := svc.RunIntegrityCheckOnce(context.Background())
	if err == nil {
		t.Fatal("expected integrity error")
	}
	if !summary.RecordMismatch {
		t.Fatalf("RecordMismatch = false, summary=%+v", summary)
	}
	if summary.StoreRecords != 5 || summary.SnapshotRecords != 2 {
		t.Fatalf("records snapshot=%d store=%d", summary.SnapshotRecords, summary.StoreRecords)
	}
}

func TestRunIntegrityCheckOnceDetectsSizeMismatch(t *testing.T) {
	objects := newFakeObjectStore(t, testRecords())
	objects.statSize = 1
	svc := &Service{Store: fakeCounter{count: 2}, ObjectStore: objects}

	summary, err := svc.RunIntegrityCheckOnce(context.Background())
	if err == nil {
		t.Fatal("expected integrity error")
	}
	if !summary.SizeMismatch {
		t.Fatalf("SizeMismatch = false, summary=%+v", summary)
	}
}

func TestRunIntegrityCheckOnceCountFailure(t *testing.T) {
	svc := &Service{
		Store:       fakeCounter{err: errors.New("connection refused")},
		ObjectStore: newFakeObjectStore(t, testRecords()),
	}

	summary, err := svc.RunIntegrityCheckOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("error = %v", err)
	}
	if summary.OperationalFailures != 1 {
		t.Fatalf("OperationalFailures = %d", summary.OperationalFailures)
	}
	if summary.RecordMismatch {
		t.Fatal("RecordMismatch should not be reported when the count failed")
	}
}

func TestRunIntegrityCheckOnceRequiresDependencies(t *testing.T) {
	if _, err := (&Service{ObjectStore: &fakeObjectStore{}}).RunIntegrityCheckOnce(context.Background()); err == nil {
		t.Fatal("expected store required error")
	}
	if _, err := (&Service{Store: fakeCounter{}}).RunIntegrityCheckOnce(context.Background()); err == nil {
		t.Fatal("expected object store required error")
	}
}

func TestRunReturnsWhenIntervalDisabled(t *testing.T) {
	svc := &Service{Store: fakeCounter{}, ObjectStore: &fakeObjectStore{}}
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	svc := &Service{
		Store:       fakeCounter{count: 2},
		ObjectStore: newFakeObjectStore(t, testRecords()),
		Config:      Config{IntegrityInterval: time.Millisecond},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after context cancel")
	}
}

func testRecords() []stock.Record {
	return []stock.Record{
		{Date: time.Date(2014, time.January, 3, 0, 0, 0, 0, time.UTC), Close: 9.970667},
		{Date: time.Date(2014, time.January, 2, 0, 0, 0, 0, time.UTC), Close: 10.006667},
	}
}

type fakeCounter struct {
	count int64
	err   error
}

func (f fakeCounter) Count(context.Context) (int64, error) {
	return f.count, f.err
}

func newFakeObjectStore(t *testing.T, records []stock.Record) *fakeObjectStore {
	t.Helper()
	store := &fakeObjectStore{objects: map[string][]byte{}}
	if _, err := export.Publish(context.Background(), store, records); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	return store
}

// fakeObjectStore is not safe for concurrent writes; Run only reads from it.
type fakeObjectStore struct {
	objects  map[string][]byte
	statSize int64
}

func (f *fakeObjectStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	size := int64(len(data))
	if f.statSize > 0 {
		size = f.statSize
	}
	return storage.ObjectInfo{Key: key, Size: size}, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}
