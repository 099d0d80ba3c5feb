package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solatis/firewrite/internal/core/api"
	"github.com/solatis/firewrite/internal/core/auth"
	"github.com/solatis/firewrite/internal/core/config"
	"github.com/solatis/firewrite/internal/core/db"
	"github.com/solatis/firewrite/internal/core/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC Firestore commit service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().Int("metrics-port", 9090, "Prometheus metrics port (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("metrics-port") {
		cfg.MetricsPort, _ = cmd.Flags().GetInt("metrics-port")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}

	database, err := db.Open(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.RequireMigrated(ctx, database); err != nil {
		return err
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return auth.ErrNoSecrets
	}

	authenticator := auth.NewAuthenticator(secrets, queries)

	service, err := api.NewCommitService(db.NewStore(database, queries), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting firewrite",
		"version", Version,
		"database", cfg.DatabaseName(),
		"host", cfg.Host,
		"port", cfg.Port,
	)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout+5*time.Second)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	}
}
