package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/deckly-app/deckly/internal/quota"
	"github.com/spf13/cobra"
)

func newLimitsCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Inspect and change proposal limits",
	}
	cmd.AddCommand(
		newLimitsGetCmd(state),
		newLimitsSetDefaultCmd(state),
		newLimitsSetCmd(state),
		newLimitsBatchCmd(state),
	)
	return cmd
}

func newLimitsGetCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "get [account-id]",
		Short: "Show the default limit, or an account's limits and usage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := state.openDB()
			if err != nil {
				return err
			}
			svc := quota.NewService(conn)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			defaultLimit, err := svc.GetDefaultLimit(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "default: %s\n", formatLimit(defaultLimit))
			if len(args) == 0 {
				return nil
			}

			accountID := strings.TrimSpace(args[0])
			individual, err := svc.GetIndividualLimit(ctx, accountID)
			if err != nil {
				return err
			}
			usage, err := svc.GetUsage(ctx, accountID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "account: %s\n", accountID)
			_, _ = fmt.Fprintf(out, "individual: %s\n", formatLimit(individual))
			_, _ = fmt.Fprintf(out, "effective: %s\n", formatLimit(usage.Limit))
			_, _ = fmt.Fprintf(out, "used: %d\n", usage.Used)
			return nil
		},
	}
}

func newLimitsSetDefaultCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <n|null>",
		Short: "Set the system-wide default limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := quota.ParseLimitString(args[0])
			if err != nil {
				return err
			}
			conn, err := state.openDB()
			if err != nil {
				return err
			}
			if errSet := quota.NewService(conn).SetDefaultLimit(cmd.Context(), limit); errSet != nil {
				return errSet
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "default: %s\n", formatLimit(limit))
			return nil
		},
	}
}

func newLimitsSetCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "set <account-id> <n|null>",
		Short: "Set one account's individual limit; null inherits the default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := quota.ParseLimitString(args[1])
			if err != nil {
				return err
			}
			conn, err := state.openDB()
			if err != nil {
				return err
			}
			accountID := strings.TrimSpace(args[0])
			if errSet := quota.NewService(conn).SetIndividualLimit(cmd.Context(), accountID, limit); errSet != nil {
				return errSet
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", accountID, formatLimit(limit))
			return nil
		},
	}
}

func newLimitsBatchCmd(state *cliState) *cobra.Command {
	var mode string
	var accounts []string
	cmd := &cobra.Command{
		Use:   "batch <n|null>",
		Short: "Apply one limit to many accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := quota.ParseLimitString(args[0])
			if err != nil {
				return err
			}
			conn, err := state.openDB()
			if err != nil {
				return err
			}
			result, err := quota.NewService(conn).ApplyBatch(cmd.Context(), limit, quota.Selector{
				Mode:       quota.SelectMode(strings.TrimSpace(mode)),
				AccountIDs: accounts,
			})
			if err != nil {
				return err
			}
			printBatchResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(quota.SelectAll), "all, null_only or list")
	cmd.Flags().StringSliceVar(&accounts, "accounts", nil, "account ids for list mode")
	return cmd
}

func printBatchResult(out io.Writer, result quota.BatchResult) {
	_, _ = fmt.Fprintf(out, "total: %d\nsucceeded: %d\nfailed: %d\n", result.Total, result.Succeeded, result.Failed)
}

func formatLimit(limit *int) string {
	if limit == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%d", *limit)
}
