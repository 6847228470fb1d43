package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	srv "github.com/mohammad-safakhou/hermes/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := loadApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.scheduler.Start(ctx); err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Address
			}
			e := srv.New(srv.Deps{
				Music:     a.engine,
				Chat:      a.assistant,
				Docs:      a.docs,
				Jobs:      a.scheduler,
				Metrics:   a.telemetry.Handler(),
				JWTSecret: a.cfg.Server.JWTSecret,
				Logger:    a.logger,
			})
			err = srv.Serve(ctx, e, addr, a.logger)
			a.logger.Info("server stopped", zap.Error(err))
			return err
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return serve
}
