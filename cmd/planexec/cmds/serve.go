package cmds

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/planexec/pkg/events"
	"github.com/go-go-golems/planexec/pkg/helpers"
	"github.com/go-go-golems/planexec/pkg/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API and stream loop events over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("address"); addr != "" {
				cfg.Server.Address = addr
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			router, err := events.NewEventRouter(events.WithLogger(helpers.NewWatermill(log.Logger)))
			if err != nil {
				return err
			}

			loop, tb, err := buildLoop(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeToolbox(tb)

			srv, err := server.New(loop, server.WithEventRouter(router))
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, cfg.Server.Address)
		},
	}

	cmd.Flags().String("address", "", "Listen address (default from config, :8080)")

	return cmd
}
