package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"yogurt-storefront/internal/devbackend"
	"yogurt-storefront/internal/domain"
	"yogurt-storefront/internal/importer"
)

func main() {
	var (
		addr        string
		catalogPath string
	)
	flag.StringVar(&addr, "addr", ":8000", "Address to listen on")
	flag.StringVar(&catalogPath, "catalog", "", "Optional product CSV (id,name,description,price,image_url,stock,category)")
	flag.Parse()

	logger := log.New(os.Stdout, "[devbackend] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	gin.SetMode(gin.ReleaseMode)

	products := devbackend.DefaultCatalog()
	if catalogPath != "" {
		loaded, err := loadCatalog(catalogPath)
		if err != nil {
			logger.Fatalf("load catalog: %v", err)
		}
		products = loaded
	}
	logger.Printf("serving %d products", len(products))

	srv := &http.Server{
		Addr:              addr,
		Handler:           devbackend.New(products, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting dev backend on %s", addr)
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func loadCatalog(path string) ([]domain.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importer.NewCSVImporter(f).Run()
}
