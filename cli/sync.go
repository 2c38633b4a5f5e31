// ABOUTME: One-shot HubSpot sync command
// ABOUTME: Runs the pipeline and prints the result, styled when stdout is a terminal
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/clear-match/clearmatch/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	labelStyle = lipgloss.NewStyle().Bold(true).Width(20)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func newSyncCommand(a *App) *cobra.Command {
	var orgID, actorID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull all HubSpot contacts into an organization's candidates",
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

			syncer, err := a.NewSyncer(store)
			if err != nil {
				return err
			}

			result := syncer.Sync(cmd.Context(), org, actorID)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				renderResult(out, result, isTerminal(out))
			}

			if !result.Success {
				return fmt.Errorf("sync failed: %s", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "organization id (default: DEFAULT_ORGANIZATION_ID)")
	cmd.Flags().StringVar(&actorID, "actor", "cli", "user id the sync is attributed to")
	cmd.Flags().BoolVar(&asJSON, "output-json", false, "print the result as JSON")

	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func renderResult(w io.Writer, r models.SyncResult, styled bool) {
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}
	label := func(text string) string {
		if !styled {
			return fmt.Sprintf("%-20s", text)
		}
		return labelStyle.Render(text)
	}

	var b strings.Builder
	b.WriteString(style(titleStyle, "HubSpot sync"))
	b.WriteString("\n")

	status := style(okStyle, "success")
	if !r.Success {
		status = style(errorStyle, "failed")
	}
	fmt.Fprintf(&b, "%s%s\n", label("Status"), status)
	fmt.Fprintf(&b, "%s%s\n", label("Run"), r.RunID)
	fmt.Fprintf(&b, "%s%d\n", label("Synced"), r.SyncedCount)
	fmt.Fprintf(&b, "%s%d\n", label("Inserted"), r.Inserted)
	fmt.Fprintf(&b, "%s%d\n", label("Updated"), r.Updated)
	fmt.Fprintf(&b, "%s%d\n", label("Failed"), r.Failed)
	fmt.Fprintf(&b, "%s%d\n", label("Skipped duplicates"), r.SkippedDuplicates)
	fmt.Fprintf(&b, "%s%d\n", label("Pages"), r.BatchesProcessed)
	fmt.Fprintf(&b, "%s%s\n", label("Duration"), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(&b, "%s%s\n", label("Error"), style(errorStyle, r.Error))
	}

	_, _ = io.WriteString(w, b.String())
}
