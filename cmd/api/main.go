// Package main provides the main entry point for the sommelier API server
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/sommekat/sommelier/internal/infrastructure/config"
	"github.com/sommekat/sommelier/internal/infrastructure/container"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := pflag.StringP("config", "c", "", "path to config.yaml")
	pflag.Parse()

	var cfg *config.Config
	app := fx.New(
		fx.NopLogger, // Use our own logger instead of Fx's
		container.Module(*configPath),
		fx.Populate(&cfg),
	)
	if err := app.Err(); err != nil {
		log.Printf("Failed to build application: %v", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, 15*time.Second)
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		log.Printf("Failed to start application: %v", err)
		return 1
	}

	// Wait for an interrupt or a fatal server error.
	exitCode := 0
	select {
	case <-ctx.Done():
	case sig := <-app.Wait():
		exitCode = sig.ExitCode
	}

	fmt.Fprintln(os.Stderr, "Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Printf("Failed to stop application gracefully: %v", err)
		exitCode = 1
	}

	return exitCode
}
