package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/pharmacy-credit/internal/app"
	"github.com/richardliu001/pharmacy-credit/internal/config"
	"github.com/richardliu001/pharmacy-credit/internal/logger"
	"github.com/richardliu001/pharmacy-credit/internal/repo"
	"github.com/richardliu001/pharmacy-credit/internal/service"
	"github.com/richardliu001/pharmacy-credit/internal/session"
	httptransport "github.com/richardliu001/pharmacy-credit/internal/transport/http"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	flag.Parse()

	// 1. load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. postgres
	gdb, err := app.OpenPostgres(cfg.Postgres)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// 4. redis
	rdb, err := app.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer rdb.Close()

	// 5. repo & service; events reach Kafka through the outbox poller
	repository := repo.NewRepository(gdb, rdb, nil, log)
	repository.SetBalanceTTL(cfg.Redis.BalanceTTL)
	svc := service.NewLedgerService(repository, log)
	svc.SetReconcileWorkers(cfg.Reconcile.Workers)
	sessions := session.NewRedisStore(rdb, cfg.Session.TTL)

	// 6. gin router
	gin.SetMode(cfg.Server.Mode)
	router := httptransport.NewRouter(svc, sessions, cfg.RateLimit, cfg.Session.CookieName, log)

	// 7. serve
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Infof("credit-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
