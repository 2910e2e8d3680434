package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/deckly-app/deckly/internal/app"
	"github.com/deckly-app/deckly/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if errRun := newRootCmd().ExecuteContext(ctx); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// cliState carries persistent flags shared by every subcommand.
type cliState struct {
	configPath string
}

// appConfig resolves the config path from the flag or CONFIG_PATH.
func (s *cliState) appConfig() (config.AppConfig, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return config.AppConfig{}, err
	}
	if strings.TrimSpace(s.configPath) != "" {
		cfg.ConfigPath = config.ResolveConfigPath(s.configPath)
	}
	return cfg, nil
}

// openDB opens and migrates the configured database.
func (s *cliState) openDB() (*gorm.DB, error) {
	cfg, err := s.appConfig()
	if err != nil {
		return nil, err
	}
	return app.OpenDatabase(cfg)
}

func newRootCmd() *cobra.Command {
	state := &cliState{}
	rootCmd := &cobra.Command{
		Use:           "deckly",
		Short:         "Deckly proposal service",
		Long:          "deckly runs the proposal API server and manages accounts and proposal limits.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&state.configPath, "config", "", "config file path (or env CONFIG_PATH)")

	rootCmd.AddCommand(
		newServeCmd(state),
		newMigrateCmd(state),
		newInitCmd(state),
		newAdminCmd(state),
		newLimitsCmd(state),
	)
	return rootCmd
}

func newServeCmd(state *cliState) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if errValidate := validatePort(port); errValidate != nil {
				return errValidate
			}
			cfg, err := state.appConfig()
			if err != nil {
				return err
			}
			return app.RunServer(cmd.Context(), cfg, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8318, "listen port when the config file does not set one")
	return cmd
}

func newMigrateCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := state.appConfig()
			if err != nil {
				return err
			}
			if errMigrate := app.Migrate(cmd.Context(), cfg); errMigrate != nil {
				return errMigrate
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
