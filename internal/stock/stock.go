// Package stock holds the historical price record served by the query
// pipeline and the single table schema the SQL generators are prompted with.
package stock

import (
	"strconv"
	"strings"
	"time"
)

const TableName = "core_teslastockdata"

const DateLayout = "2006-01-02"

// TableSchema is the DDL shown to the language model. It must stay in sync
// with the store migration that creates the table.
const TableSchema = `
--
-- Create model TeslaStockData
--
CREATE TABLE "core_teslastockdata" ("id" bigint NOT NULL PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY, "date" date NOT NULL, "open" double precision NOT NULL, "high" double precision NOT NULL, "low" double precision NOT NULL, "close" double precision NOT NULL, "volume" bigint NOT NULL, "rsi_7" double precision NOT NULL, "rsi_14" double precision NOT NULL, "cci_7" double precision NOT NULL, "cci_14" double precision NOT NULL, "sma_50" double precision NOT NULL, "ema_50" double precision NOT NULL, "sma_100" double precision NOT NULL, "ema_100" double precision NOT NULL, "macd" double precision NOT NULL, "bollinger" double precision NOT NULL, "TrueRange" double precision NOT NULL, "atr_7" double precision NOT NULL, "atr_14" double precision NOT NULL, "next_day_close" double precision NOT NULL);
`

// Columns lists the data columns in CSV header order. The identity column is
// not part of the data set.
var Columns = []string{
	"date", "open", "high", "low", "close", "volume",
	"rsi_7", "rsi_14", "cci_7", "cci_14",
	"sma_50", "ema_50", "sma_100", "ema_100",
	"macd", "bollinger", "TrueRange", "atr_7", "atr_14",
	"next_day_close",
}

type Record struct {
	// ID is the store identity. It is zero for records that have not been
	// stored, and is never read from or written to CSV.
	ID           int64
	Date         time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       int64
	RSI7         float64
	RSI14        float64
	CCI7         float64
	CCI14        float64
	SMA50        float64
	EMA50        float64
	SMA100       float64
	EMA100       float64
	MACD         float64
	Bollinger    float64
	TrueRange    float64
	ATR7         float64
	ATR14        float64
	NextDayClose float64
}

func (r Record) String() string {
	return r.Date.Format(DateLayout) + " - " + strconv.FormatFloat(r.Close, 'f', -1, 64)
}

// Values returns the record fields in Columns order.
func (r Record) Values() []any {
	return []any{
		r.Date, r.Open, r.High, r.Low, r.Close, r.Volume,
		r.RSI7, r.RSI14, r.CCI7, r.CCI14,
		r.SMA50, r.EMA50, r.SMA100, r.EMA100,
		r.MACD, r.Bollinger, r.TrueRange, r.ATR7, r.ATR14,
		r.NextDayClose,
	}
}

func (r *Record) floatFields() map[string]*float64 {
	return map[string]*float64{
		"open":           &r.Open,
		"high":           &r.High,
		"low":            &r.Low,
		"close":          &r.Close,
		"rsi_7":          &r.RSI7,
		"rsi_14":         &r.RSI14,
		"cci_7":          &r.CCI7,
		"cci_14":         &r.CCI14,
		"sma_50":         &r.SMA50,
		"ema_50":         &r.EMA50,
		"sma_100":        &r.SMA100,
		"ema_100":        &r.EMA100,
		"macd":           &r.MACD,
		"bollinger":      &r.Bollinger,
		"TrueRange":      &r.TrueRange,
		"atr_7":          &r.ATR7,
		"atr_14":         &r.ATR14,
		"next_day_close": &r.NextDayClose,
	}
}

func QuoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
