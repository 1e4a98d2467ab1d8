// Package cli provides the sommelier command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/sommekat/sommelier/internal/domain/pairing"
	"github.com/sommekat/sommelier/internal/infrastructure/container"
	"github.com/sommekat/sommelier/internal/ports/inbound"
)

// ServiceFactory builds the pairing service and returns a function that
// releases it.
type ServiceFactory func(ctx context.Context, configPath string) (inbound.PairingService, func(), error)

// runner builds the service for one command invocation and releases it afterwards.
type runner func(cmd *cobra.Command, fn func(inbound.PairingService) error) error

// NewRootCommand creates the root command. newService is called once per
// invocation, after flags are parsed.
func NewRootCommand(newService ServiceFactory) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "sommelier",
		Short:        "Wine pairings for restaurant menus and recipes",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	run := func(cmd *cobra.Command, fn func(inbound.PairingService) error) error {
		service, release, err := newService(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer release()
		return fn(service)
	}

	root.AddCommand(newMenuCommand(run))
	root.AddCommand(newRecipeCommand(run))

	return root
}

// Execute runs the CLI against the real pipeline. An interrupt cancels the
// request in flight.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return NewRootCommand(FXServiceFactory).ExecuteContext(ctx)
}

// FXServiceFactory starts the pipeline's dependency graph without the HTTP server.
func FXServiceFactory(ctx context.Context, configPath string) (inbound.PairingService, func(), error) {
	var service inbound.PairingService
	app := fx.New(
		container.CoreModule(configPath),
		fx.NopLogger,
		fx.Populate(&service),
	)
	if err := app.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start: %w", err)
	}

	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}
	return service, stop, nil
}

func readFiles(paths []string) ([]pairing.File, error) {
	files := make([]pairing.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		mimeType := pairing.NormalizeMime(mime.TypeByExtension(strings.ToLower(filepath.Ext(path))))
		if mimeType == "" {
			mimeType = pairing.NormalizeMime(http.DetectContentType(data))
		}

		files = append(files, pairing.File{
			Name:     filepath.Base(path),
			MimeType: mimeType,
			Data:     data,
		})
	}
	return files, nil
}

// urlArg returns the positional URL if given, else the --url flag value.
func urlArg(args []string, flag string) string {
	if len(args) > 0 {
		return strings.TrimSpace(args[0])
	}
	return strings.TrimSpace(flag)
}

func source(url string, paths []string) (pairing.Source, error) {
	files, err := readFiles(paths)
	if err != nil {
		return pairing.Source{}, err
	}

	if len(files) > 0 {
		return pairing.Source{Files: files, URL: strings.TrimSpace(url)}, nil
	}
	return pairing.URLSource(url), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
