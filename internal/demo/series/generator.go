// Package series generates a deterministic synthetic price history with the
// same indicator columns as the stock table, for demos and local loading.
package series

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/tickerql/tickerql/internal/stock"
)

type Config struct {
	Seed       int64
	Start      time.Time
	StartPrice float64
	// Volatility is the daily standard deviation of the close-to-close
	// return.
	Volatility float64
}

func DefaultConfig() Config {
	return Config{
		Seed:       42,
		Start:      time.Date(2014, time.January, 2, 0, 0, 0, 0, time.UTC),
		StartPrice: 10,
		Volatility: 0.03,
	}
}

type Generator struct {
	cfg Config
	rnd *rand.Rand
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.StartPrice <= 0 {
		return nil, fmt.Errorf("start price must be > 0")
	}
	if cfg.Volatility < 0 {
		return nil, fmt.Errorf("volatility must be >= 0")
	}
	if cfg.Start.IsZero() {
		cfg.Start = DefaultConfig().Start
	}
	return &Generator{cfg: cfg, rnd: rand.New(rand.NewSource(cfg.Seed))}, nil
}

// Records returns n trading days starting at cfg.Start. Weekends are
// skipped. Indicators over windows longer than the available history use
// the rows seen so far.
func (g *Generator) Records(n int) []stock.Record {
	if n <= 0 {
		return []stock.Record{}
	}

	// One extra bar supplies next_day_close for the last record.
	bars := g.bars(n + 1)
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	ema12 := ema(closes, 12)
	ema26 := ema(closes, 26)
	ema50 := ema(closes, 50)
	ema100 := ema(closes, 100)
	trueRanges := make([]float64, len(bars))
	for i := range bars {
		trueRanges[i] = trueRange(bars, i)
	}

	records := make([]stock.Record, n)
	for i := 0; i < n; i++ {
		record := bars[i]
		record.RSI7 = round6(rsi(closes, i, 7))
		record.RSI14 = round6(rsi(closes, i, 14))
		record.CCI7 = round6(cci(bars, i, 7))
		record.CCI14 = round6(cci(bars, i, 14))
		record.SMA50 = round6(mean(window(closes, i, 50)))
		record.EMA50 = round6(ema50[i])
		record.SMA100 = round6(mean(window(closes, i, 100)))
		record.EMA100 = round6(ema100[i])
		record.MACD = round6(ema12[i] - ema26[i])
		record.Bollinger = round6(bollingerUpper(closes, i, 20))
		record.TrueRange = round6(trueRanges[i])
		record.ATR7 = round6(mean(window(trueRanges, i, 7)))
		record.ATR14 = round6(mean(window(trueRanges, i, 14)))
		record.NextDayClose = bars[i+1].Close
		records[i] = record
	}
	return records
}

func (g *Generator) bars(n int) []stock.Record {
	bars := make([]stock.Record, n)
	date := g.cfg.Start
	prevClose := g.cfg.StartPrice
	for i := 0; i < n; i++ {
		date = nextTradingDay(date, i == 0)
		open := prevClose * (1 + g.rnd.NormFloat64()*g.cfg.Volatility/4)
		closePrice := prevClose * math.Exp(g.rnd.NormFloat64()*g.cfg.Volatility)
		high := math.Max(open, closePrice) * (1 + math.Abs(g.rnd.NormFloat64())*g.cfg.Volatility/2)
		low := math.Min(open, closePrice) * (1 - math.Abs(g.rnd.NormFloat64())*g.cfg.Volatility/2)
		bars[i] = stock.Record{
			Date:   date,
			Open:   round6(open),
			High:   round6(high),
			Low:    round6(low),
			Close:  round6(closePrice),
			Volume: 20_000_000 + g.rnd.Int63n(80_000_000),
		}
		prevClose = bars[i].Close
	}
	return bars
}

func nextTradingDay(date time.Time, first bool) time.Time {
	if !first {
		date = date.AddDate(0, 0, 1)
	}
	for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		date = date.AddDate(0, 0, 1)
	}
	return date
}

func trueRange(bars []stock.Record, i int) float64 {
	highLow := bars[i].High - bars[i].Low
	if i == 0 {
		return highLow
	}
	prevClose := bars[i-1].Close
	return math.Max(highLow, math.Max(math.Abs(bars[i].High-prevClose), math.Abs(bars[i].Low-prevClose)))
}

// rsi uses simple averages of the gains and losses over the last period
// changes.
func rsi(closes []float64, i, period int) float64 {
	var gains, losses float64
	for j := max(1, i-period+1); j <= i; j++ {
		change := closes[j] - closes[j-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+gains/losses)
}

func cci(bars []stock.Record, i, period int) float64 {
	typical := make([]float64, 0, period)
	for j := max(0, i-period+1); j <= i; j++ {
		typical = append(typical, (bars[j].High+bars[j].Low+bars[j].Close)/3)
	}
	avg := mean(typical)
	var deviation float64
	for _, value := range typical {
		deviation += math.Abs(value - avg)
	}
	deviation /= float64(len(typical))
	if deviation == 0 {
		return 0
	}
	return (typical[len(typical)-1] - avg) / (0.015 * deviation)
}

func bollingerUpper(closes []float64, i, period int) float64 {
	values := window(closes, i, period)
	avg := mean(values)
	var variance float64
	for _, value := range values {
		variance += (value - avg) * (value - avg)
	}
	variance /= float64(len(values))
	return avg + 2*math.Sqrt(variance)
}

func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func window(values []float64, i, period int) []float64 {
	return values[max(0, i-period+1) : i+1]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

func round6(value float64) float64 {
	return math.Round(value*1e6) / 1e6
}
