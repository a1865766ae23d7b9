// Command floodctl is the operator CLI: geometry helpers, route lookups and
// alert administration against a running server or the store directly.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/floodsense/internal/bootstrap"
	"github.com/mr1hm/floodsense/internal/config"
	"github.com/mr1hm/floodsense/internal/livesync"
	"github.com/mr1hm/floodsense/internal/logging"
	"github.com/mr1hm/floodsense/internal/repository"
)

var (
	logLevel   string
	serverAddr string
	token      string
)

var rootCmd = &cobra.Command{
	Use:           "floodctl",
	Short:         "Operate a FloodSense deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New(os.Stderr, logLevel, "text"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "localhost:50051", "gRPC address of the server")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("FLOODSENSE_TOKEN"), "session token for the gRPC API")

	rootCmd.AddCommand(distanceCmd, exitPointCmd, routeCmd, alertsCmd, broadcastCmd, floodLevelsCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// withHub opens the configured store and runs fn against a hub that is not
// subscribed to live updates.
func withHub(ctx context.Context, fn func(*livesync.Hub, *repository.Repository) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	repo := repository.New(backends.Store)
	hub := livesync.NewHub(repo, backends.Publisher)
	defer hub.Stop()

	return fn(hub, repo)
}
