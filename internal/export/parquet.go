// Package export writes the stock table as a parquet snapshot into the
// object store, where the DuckDB executor reads it back.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tickerql/tickerql/internal/stock"
	"github.com/tickerql/tickerql/internal/storage"
)

// SnapshotKey is where the latest snapshot of the stock table lives.
var SnapshotKey = mustSnapshotPath("latest")

// Object metadata written by Publish.
const (
	MetaRecordCount = "record-count"
	MetaMinDate     = "min-date"
	MetaMaxDate     = "max-date"
)

func mustSnapshotPath(label string) string {
	key, err := storage.BuildSnapshotPath(stock.TableName, label)
	if err != nil {
		panic(err)
	}
	return key
}

type ParquetEncodeResult struct {
	Data        []byte
	RecordCount int64
	MinDate     *time.Time
	MaxDate     *time.Time
}

// parquetRecord mirrors the store columns, identity first as in the table
// DDL. Dates are stored as days since the Unix epoch with the DATE logical
// type.
type parquetRecord struct {
	ID           int64   `parquet:"id"`
	Date         int32   `parquet:"date,date"`
	Open         float64 `parquet:"open"`
	High         float64 `parquet:"high"`
	Low          float64 `parquet:"low"`
	Close        float64 `parquet:"close"`
	Volume       int64   `parquet:"volume"`
	RSI7         float64 `parquet:"rsi_7"`
	RSI14        float64 `parquet:"rsi_14"`
	CCI7         float64 `parquet:"cci_7"`
	CCI14        float64 `parquet:"cci_14"`
	SMA50        float64 `parquet:"sma_50"`
	EMA50        float64 `parquet:"ema_50"`
	SMA100       float64 `parquet:"sma_100"`
	EMA100       float64 `parquet:"ema_100"`
	MACD         float64 `parquet:"macd"`
	Bollinger    float64 `parquet:"bollinger"`
	TrueRange    float64 `parquet:"TrueRange"`
	ATR7         float64 `parquet:"atr_7"`
	ATR14        float64 `parquet:"atr_14"`
	NextDayClose float64 `parquet:"next_day_close"`
}

const secondsPerDay = 24 * 60 * 60

// EncodeParquet writes records as a snapshot. Records without an ID get
// their 1-based position. An empty slice yields a valid zero-row file so an
// emptied table replaces the previous snapshot.
func EncodeParquet(records []stock.Record) (ParquetEncodeResult, error) {
	rows := make([]parquetRecord, 0, len(records))
	var minDate *time.Time
	var maxDate *time.Time

	for i, record := range records {
		date := record.Date.UTC()
		id := record.ID
		if id == 0 {
			id = int64(i) + 1
		}
		rows = append(rows, parquetRecord{
			ID:           id,
			Date:         int32(date.Unix() / secondsPerDay),
			Open:         record.Open,
			High:         record.High,
			Low:          record.Low,
			Close:        record.Close,
			Volume:       record.Volume,
			RSI7:         record.RSI7,
			RSI14:        record.RSI14,
			CCI7:         record.CCI7,
			CCI14:        record.CCI14,
			SMA50:        record.SMA50,
			EMA50:        record.EMA50,
			SMA100:       record.SMA100,
			EMA100:       record.EMA100,
			MACD:         record.MACD,
			Bollinger:    record.Bollinger,
			TrueRange:    record.TrueRange,
			ATR7:         record.ATR7,
			ATR14:        record.ATR14,
			NextDayClose: record.NextDayClose,
		})

		if minDate == nil || date.Before(*minDate) {
			value := date
			minDate = &value
		}
		if maxDate == nil || date.After(*maxDate) {
			value := date
			maxDate = &value
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRecord](buf)
	if _, err := writer.Write(rows); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return ParquetEncodeResult{
		Data:        buf.Bytes(),
		RecordCount: int64(len(rows)),
		MinDate:     minDate,
		MaxDate:     maxDate,
	}, nil
}

// DecodeParquet reads a snapshot produced by EncodeParquet.
func DecodeParquet(data []byte) ([]stock.Record, error) {
	rows, err := parquet.Read[parquetRecord](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	records := make([]stock.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, stock.Record{
			ID:           row.ID,
			Date:         time.Unix(int64(row.Date)*secondsPerDay, 0).UTC(),
			Open:         row.Open,
			High:         row.High,
			Low:          row.Low,
			Close:        row.Close,
			Volume:       row.Volume,
			RSI7:         row.RSI7,
			RSI14:        row.RSI14,
			CCI7:         row.CCI7,
			CCI14:        row.CCI14,
			SMA50:        row.SMA50,
			EMA50:        row.EMA50,
			SMA100:       row.SMA100,
			EMA100:       row.EMA100,
			MACD:         row.MACD,
			Bollinger:    row.Bollinger,
			TrueRange:    row.TrueRange,
			ATR7:         row.ATR7,
			ATR14:        row.ATR14,
			NextDayClose: row.NextDayClose,
		})
	}
	return records, nil
}

type PublishResult struct {
	Key         string
	RecordCount int64
	SizeBytes   int64
	MinDate     *time.Time
	MaxDate     *time.Time
}

// Publish encodes records and overwrites the snapshot at SnapshotKey.
func Publish(ctx context.Context, store storage.ObjectStore, records []stock.Record) (PublishResult, error) {
	if store == nil {
		return PublishResult{}, fmt.Errorf("object store is required")
	}
	encoded, err := EncodeParquet(records)
	if err != nil {
		return PublishResult{}, err
	}
	info, err := store.Put(ctx, SnapshotKey, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
		Metadata:    snapshotMetadata(encoded),
	})
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish snapshot: %w", err)
	}
	size := info.Size
	if size == 0 {
		size = int64(len(encoded.Data))
	}
	return PublishResult{
		Key:         SnapshotKey,
		RecordCount: encoded.RecordCount,
		SizeBytes:   size,
		MinDate:     encoded.MinDate,
		MaxDate:     encoded.MaxDate,
	}, nil
}

func snapshotMetadata(encoded ParquetEncodeResult) map[string]string {
	meta := map[string]string{MetaRecordCount: strconv.FormatInt(encoded.RecordCount, 10)}
	if encoded.MinDate != nil {
		meta[MetaMinDate] = encoded.MinDate.Format(time.DateOnly)
	}
	if encoded.MaxDate != nil {
		meta[MetaMaxDate] = encoded.MaxDate.Format(time.DateOnly)
	}
	return meta
}
