package main

import (
	"fmt"

	"github.com/deckly-app/deckly/internal/app"
	"github.com/spf13/cobra"
)

func newAdminCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(newAdminCreateCmd(state))
	return cmd
}

func newAdminCreateCmd(state *cliState) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := state.openDB()
			if err != nil {
				return err
			}
			admin, errCreate := app.CreateAdminUser(conn, email, password, name)
			if errCreate != nil {
				return errCreate
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Email, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password (min 8 characters)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
