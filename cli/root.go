// ABOUTME: Root cobra command and shared configuration wiring
// ABOUTME: Binds persistent flags to viper and builds the logger, store, and syncer for subcommands
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clear-match/clearmatch/config"
	"github.com/clear-match/clearmatch/db"
	"github.com/clear-match/clearmatch/hubspot"
	"github.com/clear-match/clearmatch/logger"
	hubsync "github.com/clear-match/clearmatch/sync"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const app = "clearmatch"

// Version is set at build time.
var Version = "0.1.0"

// App carries what every subcommand needs once configuration is loaded.
type App struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewRootCommand builds the command tree. Each call uses its own viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string
	a := &App{}

	root := &cobra.Command{
		Use:           app,
		Short:         "clearmatch syncs HubSpot contacts into Clear Match candidates",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWith(v, cfgFile)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogJSON, cfg.Debug)
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			a.Config = cfg
			a.Logger = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.Logger != nil {
				_ = a.Logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json, or env)")
	flags.BoolP("debug", "d", false, "verbose/debug output")
	flags.BoolP("json", "j", false, "json format for logging")
	flags.String("db-path", "", "SQLite database path (default: $XDG_DATA_HOME/clearmatch/clearmatch.db)")

	_ = v.BindPFlag("DEBUG", flags.Lookup("debug"))
	_ = v.BindPFlag("LOG_JSON", flags.Lookup("json"))
	_ = v.BindPFlag("DB_PATH", flags.Lookup("db-path"))

	root.AddCommand(
		newSyncCommand(a),
		newStatusCommand(a),
		newServeCommand(a),
		newMigrateCommand(a),
		newMCPCommand(a),
	)

	return root
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// OpenStore opens the configured database.
func (a *App) OpenStore() (*db.Store, error) {
	store, err := db.Open(a.Config.DBDriver, a.Config.DSN())
	if err != nil {
		return nil, err
	}
	a.Logger.Debug("opened database", zap.String("driver", a.Config.DBDriver))
	return store, nil
}

// NewSyncer wires the HubSpot client and the pipeline over store.
func (a *App) NewSyncer(store *db.Store) (*hubsync.Syncer, error) {
	token, err := a.Config.HubSpotToken()
	if err != nil {
		return nil, err
	}

	rps := a.Config.HubSpotRequestsPerSecond
	if rps == 0 {
		rps = -1
	}

	client, err := hubspot.New(hubspot.Options{
		BaseURL:           a.Config.HubSpotBaseURL,
		Token:             token,
		PageSize:          a.Config.HubSpotPageSize,
		RequestsPerSecond: rps,
		Properties:        hubsync.RemoteProperties(),
		Logger:            a.Logger.Named("hubspot"),
	})
	if err != nil {
		return nil, err
	}

	delay := a.Config.SyncPageDelay
	if delay == 0 {
		delay = -1
	}

	return hubsync.New(client, store, store, store, hubsync.Options{
		PageDelay:         delay,
		UpdateConcurrency: a.Config.SyncUpdateConcurrency,
		Logger:            a.Logger.Named("sync"),
	}), nil
}

// organization returns flagValue or the configured default.
func (a *App) organization(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if a.Config.DefaultOrganizationID != "" {
		return a.Config.DefaultOrganizationID, nil
	}
	return "", fmt.Errorf("--org is required (or set DEFAULT_ORGANIZATION_ID)")
}
