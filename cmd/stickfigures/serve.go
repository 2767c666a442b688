package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stickfigures/internal/app"
	"stickfigures/internal/config"
	"stickfigures/internal/metrics"
	"stickfigures/internal/server"
	"stickfigures/internal/view"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mint page",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		return serve(cmd.Context(), cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Chain.RPCTimeout)
	ch, err := dialChain(dialCtx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer ch.Close()

	store, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	reg := metrics.New()
	ctrl := app.New(app.Options{
		Contract:        cfg.Contract(),
		MarketplaceBase: cfg.Links.MarketplaceBase,
		ExplorerBase:    cfg.Links.ExplorerBase,
		ReadTimeout:     cfg.Chain.RPCTimeout,
	}, app.Deps{
		Wallet:  ch.connector,
		Gateway: ch.gateway,
		Events:  ch.subscriber,
		Store:   view.NewStore(),
		Ledger:  store,
		Metrics: reg,
		Log:     log,
	})

	startCtx, cancel := context.WithTimeout(ctx, cfg.Chain.RPCTimeout)
	ctrl.Start(startCtx)
	cancel()

	srv := server.NewServer(cfg, ctrl, reg.Handler(), log)
	srv.SetRPCHealth(func(ctx context.Context) error {
		_, err := ch.client.ChainID(ctx)
		return err
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case s := <-sig:
		log.Info("shutting down", zap.String("signal", s.String()))
	case err := <-errCh:
		log.Error("server stopped", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	mintsDone := make(chan struct{})
	go func() {
		ctrl.Wait()
		close(mintsDone)
	}()
	select {
	case <-mintsDone:
	case <-shutdownCtx.Done():
		log.Warn("gave up waiting for a pending mint")
	}
	return nil
}
