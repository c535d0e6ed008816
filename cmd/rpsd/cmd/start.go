package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/cometbft/cometbft/abci/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Cript/game-rps/internal/app"
	"github.com/Cript/game-rps/internal/config"
	"github.com/Cript/game-rps/internal/store"
	"github.com/Cript/game-rps/internal/telemetry"
)

func newStartCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the ABCI server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for key, flag := range map[string]string{
				"abci.addr":           "addr",
				"abci.transport":      "transport",
				"db.backend":          "db-backend",
				"rps.capacity":        "capacity",
				"rps.max_roster_size": "max-roster-size",
				"log.level":           "log-level",
				"log.format":          "log-format",
			} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			return runNode(cmd.Context(), cfg, logger)
		},
	}
	f := cmd.Flags()
	f.String("addr", "tcp://127.0.0.1:26658", "ABCI listen address")
	f.String("transport", "socket", "ABCI transport (socket|grpc)")
	f.String("db-backend", string(store.BackendFile), "state store (file|boltdb|goleveldb|memdb)")
	f.Uint32("capacity", 2, "participants per join session")
	f.Uint32("max-roster-size", 16, "largest roster a session may fix at creation")
	f.String("log-level", "info", "log level (debug|info|warn|error)")
	f.String("log-format", "plain", "log format (plain|json)")
	return cmd
}

func newLogger(w io.Writer, cfg config.LogConfig) (log.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := []log.Option{log.LevelOption(level)}
	if cfg.Format == "json" {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.NewLogger(w, opts...), nil
}

func runNode(ctx context.Context, cfg config.Config, logger log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	otelCfg, err := telemetry.ConfigFromEnv()
	if err != nil {
		return err
	}
	shutdown, err := telemetry.Setup(ctx, BinaryName, otelCfg)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Error("telemetry shutdown", "err", err)
		}
	}()

	backend, err := store.ParseBackend(cfg.DB.Backend)
	if err != nil {
		return err
	}
	s, err := store.Open(backend, cfg.DataDir())
	if err != nil {
		return fmt.Errorf("open %s store: %w", backend, err)
	}

	a, err := app.New(s, cfg.RPS, logger)
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("init app: %w", err)
	}
	defer func() { _ = a.Close() }()

	srv, err := server.NewServer(cfg.ABCI.Addr, cfg.ABCI.Transport, a)
	if err != nil {
		return fmt.Errorf("start abci server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("abci server start: %w", err)
	}
	defer func() { _ = srv.Stop() }()

	logger.Info("abci server listening", "addr", cfg.ABCI.Addr, "transport", cfg.ABCI.Transport, "backend", string(backend), "home", cfg.Home)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	return nil
}
