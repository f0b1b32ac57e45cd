// Command demoserver starts an in-memory policy backend for trying policyctl
// locally.
// Usage: go run ./cmd/demoserver [-addr :8000] [-api-key KEY] [-seed=false]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raysh454/policyctl/internal/demoserver"
	"github.com/raysh454/policyctl/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()
	flag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "Listen address")
	flag.StringVar(&cfg.APIKey, "api-key", os.Getenv("API_KEY"), "Require this API key on /policies (empty: open)")
	flag.BoolVar(&cfg.Seed, "seed", cfg.Seed, "Preload sample policies")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("   policyctl demo backend")
	fmt.Println("===========================================")
	fmt.Printf("Listening on %s\n", cfg.ListenAddr)
	if cfg.APIKey != "" {
		fmt.Println("Auth: required (X-API-Key or Authorization: ApiKey)")
	} else {
		fmt.Println("Auth: open")
	}
	fmt.Println()

	logger := logging.NewLogger("demoserver", os.Stdout, logging.ParseLevel(*logLevel))
	srv := demoserver.NewDemoServer(cfg, logger).HTTPServer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}
