package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tickerql/tickerql/internal/config"
	"github.com/tickerql/tickerql/internal/loader"
	"github.com/tickerql/tickerql/internal/observability"
	s3store "github.com/tickerql/tickerql/internal/storage/s3"
	storepostgres "github.com/tickerql/tickerql/internal/store/postgres"
)

func main() {
	exportSnapshot := flag.Bool("export", false, "publish a parquet snapshot to the object store after loading")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: tickerql-load [-export] <csv_file_path>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.LoadFromEnv("tickerql-load")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storepostgres.Open(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open store db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	service := &loader.Service{
		Repository: storepostgres.NewRepository(db),
		Logger:     logger,
	}
	if *exportSnapshot {
		objectStore, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		service.ObjectStore = objectStore
	}

	result, err := service.LoadFile(ctx, path)
	if err != nil {
		var notFound *loader.FileNotFoundError
		if errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, notFound.Error())
			os.Exit(1)
		}
		logger.Error("load failed", slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}
	if result.Snapshot != nil {
		fmt.Printf("published %s (%d records)\n", result.Snapshot.Key, result.Snapshot.RecordCount)
	}
	fmt.Println(loader.SuccessMessage)
}
