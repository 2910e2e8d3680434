package main

import (
	"fmt"
	"strings"

	"github.com/deckly-app/deckly/internal/app"
	"github.com/spf13/cobra"
)

func newInitCmd(state *cliState) *cobra.Command {
	var req app.InitRequest
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an initial config file with a generated JWT secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if errValidate := validatePort(req.Port); errValidate != nil {
				return errValidate
			}
			cfg, err := state.appConfig()
			if err != nil {
				return err
			}
			req.DatabaseType = strings.ToLower(strings.TrimSpace(req.DatabaseType))
			if errWrite := app.WriteConfigFile(cfg.ConfigPath, req); errWrite != nil {
				return errWrite
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfg.ConfigPath)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.DatabaseType, "db-type", "sqlite", "database type: sqlite or postgres")
	flags.StringVar(&req.DatabasePath, "db-path", "deckly.db", "sqlite database file")
	flags.StringVar(&req.DatabaseHost, "db-host", "", "postgres host")
	flags.IntVar(&req.DatabasePort, "db-port", 5432, "postgres port")
	flags.StringVar(&req.DatabaseUser, "db-user", "", "postgres user")
	flags.StringVar(&req.DatabasePassword, "db-password", "", "postgres password")
	flags.StringVar(&req.DatabaseName, "db-name", "", "postgres database name")
	flags.StringVar(&req.DatabaseSSLMode, "db-sslmode", "disable", "postgres sslmode")
	flags.IntVar(&req.Port, "port", 8318, "server port written to the config")
	flags.StringVar(&req.GeminiModel, "model", "", "Gemini model name")
	return cmd
}

// validatePort ensures the port is within the valid TCP range.
func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
