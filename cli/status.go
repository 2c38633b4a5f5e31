package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/clear-match/clearmatch/db"
	"github.com/clear-match/clearmatch/models"
	"github.com/spf13/cobra"
)

func newStatusCommand(a *App) *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last HubSpot sync for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := a.organization(orgID)
			if err != nil {
				return err
			}

			store, err := a.OpenStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			state, err := store.GetSyncState(cmd.Context(), org, models.ServiceHubSpotContacts)
			if errors.Is(err, db.ErrNotFound) {
				fmt.Fprintf(out, "No HubSpot sync has run for %s\n", org)
				return nil
			}
			if err != nil {
				return err
			}

			lastSync := "never"
			if state.LastSyncTime != nil {
				lastSync = state.LastSyncTime.Local().Format(time.RFC1123)
			}

			fmt.Fprintf(out, "Organization: %s\n", state.OrganizationID)
			fmt.Fprintf(out, "Status:       %s\n", state.Status)
			fmt.Fprintf(out, "Last sync:    %s\n", lastSync)
			fmt.Fprintf(out, "Synced:       %d\n", state.LastSyncedCount)
			fmt.Fprintf(out, "Last run:     %s\n", state.LastRunID)
			if state.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:        %s\n", state.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "organization id (default: DEFAULT_ORGANIZATION_ID)")
	return cmd
}
