// Package cli is the creditctl operations tool: seeding customers, issuing
// staff sessions, reconciling balances against the ledger and exporting
// statements.
package cli

import (
	"context"
	"database/sql"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/pharmacy-credit/internal/app"
	"github.com/richardliu001/pharmacy-credit/internal/config"
	"github.com/richardliu001/pharmacy-credit/internal/logger"
	"github.com/richardliu001/pharmacy-credit/internal/repo"
	"github.com/richardliu001/pharmacy-credit/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgPath string

// backing service openers, swapped in tests
var (
	openPostgres = app.OpenPostgres
	openRedis    = app.OpenRedis
)

var rootCmd = &cobra.Command{
	Use:           "creditctl",
	Short:         "Operate the pharmacy credit ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "internal/config/config.yaml", "path to config file")
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

// env is what a command needs from the running system. Redis is only
// dialled for commands that ask for it.
type env struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	sqlDB *sql.DB
	rdb   *redis.Client
	svc   *service.LedgerService
}

func openEnv(ctx context.Context, withRedis bool) (_ *env, err error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	gdb, err := openPostgres(cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if e.sqlDB, err = gdb.DB(); err != nil {
		return nil, err
	}
	if withRedis {
		if e.rdb, err = openRedis(ctx, cfg.Redis); err != nil {
			return nil, err
		}
	}
	r := repo.NewRepository(gdb, e.rdb, nil, log)
	r.SetBalanceTTL(cfg.Redis.BalanceTTL)
	e.svc = service.NewLedgerService(r, log)
	e.svc.SetReconcileWorkers(cfg.Reconcile.Workers)
	return e, nil
}

// Close releases whatever openEnv managed to open.
func (e *env) Close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	if e.sqlDB != nil {
		_ = e.sqlDB.Close()
	}
	_ = e.log.Sync()
}
