// ABOUTME: HTTP server command
// ABOUTME: Serves the sync API until interrupted
package cli

import (
	"context"

	"github.com/clear-match/clearmatch/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(a *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HubSpot sync HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.OpenStore()
			if err != nil {
				return err
			}
			defer store.Close()

			syncer, err := a.NewSyncer(store)
			if err != nil {
				return err
			}

			if !a.Config.AuthEnabled() {
				a.Logger.Warn("AUTH_JWT_SECRET is empty, API requests are not authenticated")
			}

			if addr == "" {
				addr = a.Config.HTTPAddr
			}

			srv := web.NewServer(web.Deps{
				Syncer:                syncer,
				State:                 store,
				Ping:                  func(ctx context.Context) error { return store.DB().PingContext(ctx) },
				JWTSecret:             a.Config.AuthJWTSecret,
				DefaultOrganizationID: a.Config.DefaultOrganizationID,
				Logger:                a.Logger.Named("http"),
			})

			a.Logger.Info("serving", zap.String("addr", addr))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: HTTP_ADDR)")
	return cmd
}
