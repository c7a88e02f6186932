package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/guardchain/internal/server"
)

var (
	serveAddr   string
	serveConfig string
	serveRate   float64
	serveBurst  int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "Path to pipeline YAML (default: built-in chain)")
	serveCmd.Flags().Float64Var(&serveRate, "rate", 0, "Per-client requests per second (0 disables throttling)")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 0, "Per-client burst size")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the validation HTTP server",
	Long: "Serves POST /v1/validate and GET /healthz.\n" +
		"The pipeline definition is hot-reloaded when the config file changes.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := server.New(server.Config{
		Addr:       serveAddr,
		ConfigPath: serveConfig,
		RatePerSec: serveRate,
		Burst:      serveBurst,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if serveConfig != "" {
		reloader, err := server.NewReloader(srv, serveConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
		} else {
			go reloader.Run(ctx)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "guardchain listening on %s\n", serveAddr)
	if serveConfig != "" {
		fmt.Fprintf(os.Stderr, "Pipeline: %s (hot-reload enabled)\n", serveConfig)
	}

	if err := srv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
