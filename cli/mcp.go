// ABOUTME: MCP server subcommand
// ABOUTME: Exposes the sync tools to assistants over stdio
package cli

import (
	"github.com/clear-match/clearmatch/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newMCPCommand(a *App) *cobra.Command {
	var actorID string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.Logger.Info("starting clearmatch MCP server")

			store, err := a.OpenStore()
			if err != nil {
				return err
			}
			defer store.Close()

			syncer, err := a.NewSyncer(store)
			if err != nil {
				return err
			}

			server := mcp.NewServer(&mcp.Implementation{
				Name:    app,
				Version: Version,
			}, nil)

			handlers.NewSyncHandlers(syncer, store, a.Config.DefaultOrganizationID, actorID).Register(server)

			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "assistant", "default user id MCP syncs are attributed to")
	return cmd
}
