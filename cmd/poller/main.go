package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/pharmacy-credit/internal/app"
	"github.com/richardliu001/pharmacy-credit/internal/config"
	"github.com/richardliu001/pharmacy-credit/internal/logger"
	"github.com/richardliu001/pharmacy-credit/internal/outbox"
	"github.com/richardliu001/pharmacy-credit/internal/repo"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := app.OpenPostgres(cfg.Postgres)
	if err != nil {
		log.Fatalf("%v", err)
	}

	kw := app.NewKafkaWriter(cfg.Kafka)
	defer kw.Close()

	// the relay never touches the balance cache
	r := repo.NewRepository(gdb, nil, kw, log)
	outbox.NewRelay(r, log, cfg.Outbox.BatchSize, cfg.Outbox.PollInterval).Run(ctx)
}
