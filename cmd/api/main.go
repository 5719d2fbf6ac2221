package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	httpadp "collateral-evidence/internal/adapter/http"
	evmw "collateral-evidence/internal/adapter/middleware"
	repo "collateral-evidence/internal/adapter/repository/mysql"
	"collateral-evidence/internal/app"
	"collateral-evidence/internal/config"
	"collateral-evidence/internal/infrastructure/cache"
	"collateral-evidence/internal/infrastructure/db"
	"collateral-evidence/internal/infrastructure/logging"
	loanuc "collateral-evidence/internal/usecase/loan"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close(gdb)
	if err := repo.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Fatal("open redis")
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := app.Build(ctx, cfg, gdb, log)
	if err != nil {
		log.WithError(err).Fatal("build pipeline")
	}
	loans := loanuc.NewUsecase(repo.NewLoanRepository(gdb), repo.NewRejectionRepository(gdb))

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover())

	// routes
	httpadp.Register(e, httpadp.Handlers{
		Health: httpadp.NewHandler(map[string]httpadp.Check{
			"database": func(ctx context.Context) error {
				sqlDB, err := gdb.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		Events: httpadp.NewEventHandler(p.Evidence, log),
		Loans:  httpadp.NewLoanHandler(loans, p.Verification),
	}, evmw.EventGuard(rdb, cfg.EventLockTTL, cfg.EventReplayTTL, log))

	addr := ":" + cfg.AppPort
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	// in-flight runs may still be waiting on the oracle
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.OracleTimeout+30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
