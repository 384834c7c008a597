package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hejijunhao/mailsort/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification HTTP API",
		Long: `Serve the classification API:

  GET  /api/health         liveness and model_loaded
  GET  /api/categories     categories with descriptions
  POST /api/predict        {"email": "..."}
  POST /api/predict/batch  {"emails": ["...", ...]}
  GET  /metrics            Prometheus metrics

The server starts even when the model fails to load; predictions then
return 503 and /api/health reports model_loaded=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			eng, err := loadEngine(cfg.Engine)
			if err != nil {
				return err
			}
			defer eng.Close()
			if !eng.Ready() {
				slog.Warn("serving without a model", "error", eng.LoadErr())
			}

			return server.New(eng, cfg.Server, slog.Default()).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	return cmd
}
