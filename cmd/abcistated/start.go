package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/config"
	"github.com/blockberries/abcistate/diffdb"
	"github.com/blockberries/abcistate/example/counter"
	abcigrpc "github.com/blockberries/abcistate/grpc"
	"github.com/blockberries/abcistate/local"
	"github.com/blockberries/abcistate/log"
	"github.com/blockberries/abcistate/metrics"
	"github.com/blockberries/abcistate/server"
	"github.com/blockberries/abcistate/snapshot"
	"github.com/blockberries/abcistate/value"
)

const shutdownTimeout = 10 * time.Second

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Serve the counter state machine to a consensus engine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := log.Init(cfg.Log); err != nil {
			return errors.Wrap(err, "failed to init logger")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func loadGenesis(path string) (value.Value, error) {
	if path == "" {
		return counter.Genesis(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return value.Value{}, errors.Wrap(err, "failed to read genesis file")
	}
	v, err := value.Parse(raw)
	if err != nil {
		return value.Value{}, errors.Wrap(err, "invalid genesis file")
	}
	return v, nil
}

// run serves until ctx is done or the application halts. A halt is
// returned as the error so the process exits non-zero.
func run(ctx context.Context, cfg config.Config) error {
	logger := log.L()

	genesis, err := loadGenesis(cfg.GenesisFile)
	if err != nil {
		return err
	}
	store, err := snapshot.Open(cfg.SnapshotDir, snapshot.WithLogger(logger))
	if err != nil {
		return err
	}
	journal, err := diffdb.Open(ctx, cfg.DiffDB)
	if err != nil {
		return err
	}
	conn := local.NewConnection(counter.New(), store, journal, genesis,
		server.WithLogger(logger),
		server.WithObserver(server.MultiObserver{server.NewLogObserver(logger), metrics.Observer{}}),
		server.WithDiffQueueSize(cfg.DiffQueueSize),
	)
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Error("Failed to close connection", zap.Error(err))
		}
	}()

	halted := make(chan *abcistate.HaltError, 1)
	gs := grpc.NewServer()
	abcigrpc.NewGRPCServer(conn,
		abcigrpc.WithLogger(logger),
		abcigrpc.WithHaltHandler(func(h *abcistate.HaltError) {
			logger.Error("Application halted", zap.Int64("height", h.Height), zap.String("reason", h.Reason))
			halted <- h
		}),
	).Register(gs)

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", cfg.ListenAddress)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Serving ABCI", zap.String("address", lis.Addr().String()))
		if err := gs.Serve(lis); !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddress != "" {
		metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("Serving metrics", zap.String("address", cfg.MetricsAddress))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		var cause error
		select {
		case <-gctx.Done():
		case h := <-halted:
			cause = h
		}
		logger.Info("Shutting down")
		gs.GracefulStop()
		if metricsSrv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsSrv.Shutdown(sctx); err != nil {
				logger.Warn("Metrics server shutdown", zap.Error(err))
			}
		}
		return cause
	})
	return g.Wait()
}
