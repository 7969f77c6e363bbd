package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the attendance web server.
The dashboard shows the ledger, enrolled people and training status,
and can start a training run.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	port := mustGetInt(cmd, "port")
	if port == 0 {
		port = cfg.Web.Port
	}
	if port == 0 {
		port = constants.DefaultPort
	}
	host := mustGetString(cmd, "host")
	if host == "" {
		host = cfg.Web.Host
	}

	ctx := context.Background()
	b := newBackends(cfg)
	defer b.Close()

	svc, err := b.newService(ctx, serviceOptions{extractor: true, encodings: true, ledger: true})
	if err != nil {
		return fmt.Errorf("failed to initialize backends: %w", err)
	}

	fmt.Printf("Encodings: %s, ledger: %s, extractor: %s\n",
		cfg.Storage.Encodings, cfg.Storage.Ledger, cfg.Recognition.Extractor)

	server := web.NewServer(cfg, svc, host, port)

	// Graceful shutdown
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %v, shutting down...\n", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
