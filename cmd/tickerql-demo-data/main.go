package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tickerql/tickerql/internal/demo/series"
	"github.com/tickerql/tickerql/internal/stock"
)

func main() {
	defaults := series.DefaultConfig()
	rows := flag.Int("rows", 500, "number of trading days to generate")
	seed := flag.Int64("seed", defaults.Seed, "random seed")
	start := flag.String("start", defaults.Start.Format(stock.DateLayout), "first trading day (YYYY-MM-DD)")
	price := flag.Float64("price", defaults.StartPrice, "starting close price")
	volatility := flag.Float64("volatility", defaults.Volatility, "daily close-to-close volatility")
	out := flag.String("out", "-", "output CSV path, - for stdout")
	flag.Parse()

	startDate, err := time.Parse(stock.DateLayout, *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -start %q: %v\n", *start, err)
		os.Exit(2)
	}
	generator, err := series.NewGenerator(series.Config{
		Seed:       *seed,
		Start:      startDate,
		StartPrice: *price,
		Volatility: *volatility,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "generator error: %v\n", err)
		os.Exit(2)
	}

	if err := write(*out, func(w io.Writer) error {
		return stock.WriteCSV(w, generator.Records(*rows))
	}); err != nil {
		fmt.Fprintf(os.Stderr, "write csv: %v\n", err)
		os.Exit(1)
	}
}

func write(path string, fn func(io.Writer) error) error {
	if path == "-" {
		w := bufio.NewWriter(os.Stdout)
		if err := fn(w); err != nil {
			return err
		}
		return w.Flush()
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
