package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"yogurt-storefront/internal/backend"
	"yogurt-storefront/internal/cart"
	"yogurt-storefront/internal/config"
	"yogurt-storefront/internal/db"
	"yogurt-storefront/internal/httpserver"
	"yogurt-storefront/internal/migrate"
	cartrepo "yogurt-storefront/internal/repository/cart"
	checkoutsvc "yogurt-storefront/internal/service/checkout"
	ordersvc "yogurt-storefront/internal/service/order"
	productsvc "yogurt-storefront/internal/service/product"
	"yogurt-storefront/internal/service/session"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[storefront] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	repo, checks, closeRepo, err := openCartRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open cart storage %q: %v", cfg.CartStorage, err)
	}
	defer closeRepo()

	client := backend.New(cfg.BackendURL, cfg.BackendTimeout, logger)
	carts := cart.NewRegistry(repo, logger)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go carts.Run(sweepCtx, time.Minute, cfg.CartIdle)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Catalog:        productsvc.New(client, cfg.CatalogTTL, logger),
		Carts:          carts,
		Checkout:       checkoutsvc.New(client, logger),
		Orders:         ordersvc.New(client, logger),
		Sessions:       session.New(session.DefaultTTL, cfg.CookieSecure),
		AllowedOrigins: cfg.AllowedOrigins,
		ReadyChecks:    checks,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s backend=%s storage=%s", cfg.HTTPAddr, cfg.BackendURL, cfg.CartStorage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}

// openCartRepository builds the snapshot store selected by CART_STORAGE and
// the readiness checks for it.
func openCartRepository(ctx context.Context, cfg config.Config, logger *log.Logger) (cartrepo.Repository, map[string]httpserver.ReadyCheck, func(), error) {
	noop := func() {}
	switch cfg.CartStorage {
	case config.StorageMemory:
		logger.Printf("cart storage: memory, carts are lost on restart")
		return cartrepo.NewMemory(), nil, noop, nil

	case config.StoragePostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("connect to db: %w", err)
		}
		if err := migrate.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, noop, fmt.Errorf("apply migrations: %w", err)
		}
		checks := map[string]httpserver.ReadyCheck{"postgres": pool.Ping}
		return cartrepo.NewPostgres(pool), checks, pool.Close, nil

	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		checks := map[string]httpserver.ReadyCheck{
			"redis": func(ctx context.Context) error { return client.Ping(ctx).Err() },
		}
		return cartrepo.NewRedis(client, cfg.CartTTL), checks, func() { client.Close() }, nil

	case config.StorageMySQL:
		sqlDB, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("open mysql: %w", err)
		}
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		if err := cartrepo.EnsureMySQLSchema(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, nil, noop, fmt.Errorf("prepare mysql schema: %w", err)
		}
		checks := map[string]httpserver.ReadyCheck{"mysql": sqlDB.PingContext}
		return cartrepo.NewMySQL(sqlDB), checks, func() { sqlDB.Close() }, nil
	}
	return nil, nil, noop, fmt.Errorf("unknown cart storage %q", cfg.CartStorage)
}
