package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/waypoint/internal/core/api"
	"github.com/solatis/waypoint/internal/core/auth"
	"github.com/solatis/waypoint/internal/core/config"
	"github.com/solatis/waypoint/internal/core/db"
	"github.com/solatis/waypoint/internal/core/metrics"
	"github.com/solatis/waypoint/internal/core/registry"
	"github.com/solatis/waypoint/internal/core/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC endpoint resolver service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().Int("metrics-port", 9090, "prometheus /metrics port (0 disables)")
	serveCmd.Flags().String("partitions", "", "partition table file (default: embedded)")
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	statuses, err := db.MigrateStatus(env.queries.DB())
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'waypoint migrate' first", s.ID)
		}
	}

	m := metrics.New()
	reg, err := newRegistry(env, registry.Options{Metrics: m})
	if err != nil {
		return err
	}
	service, err := api.NewResolverService(reg, logger.Named("api"))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	opts := server.Options{Metrics: m, Logger: logger.Named("server")}
	if len(secrets) > 0 {
		opts.Authenticator = auth.NewAuthenticator(secrets, env.queries, logger.Named("auth"))
	} else {
		logger.Warn("no HMAC secrets configured; ImportRuleSet is disabled")
	}

	grpcServer, err := server.NewGRPCServer(env.cfg.Server, service, opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting waypoint resolver",
		zap.String("version", Version),
		zap.String("host", env.cfg.Server.Host),
		zap.Int("port", env.cfg.Server.Port),
		zap.Int("metrics_port", env.cfg.Server.MetricsPort),
	)

	ctx := context.Background()
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", zap.String("signal", sig.String()))
		return grpcServer.Shutdown(ctx)
	}
}
