package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trackside/internal/race"
)

func newSettingCommand(ctx *commandContext) *cobra.Command {
	settingCmd := &cobra.Command{
		Use:   "setting",
		Short: "Inspect and tune race settings",
		Long: "Settings live in the race database and override the [heats] config\n" +
			"defaults without a daemon restart. Times are in seconds.",
	}

	settingCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *race.Store) error {
				settings, err := store.Settings(cmd.Context())
				if err != nil {
					return err
				}
				if len(settings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No settings stored; config defaults apply")
					return nil
				}

				rows := make([][]string, 0, len(settings))
				for _, setting := range settings {
					rows = append(rows, []string{setting.Key, setting.Value})
				}
				table := renderTable(
					[]string{"Key", "Value"},
					rows,
					[]columnAlignment{alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	})

	settingCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			return ctx.withStore(func(store *race.Store) error {
				value, ok, err := store.Setting(cmd.Context(), key)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("setting %q is not stored; config defaults apply", key)
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	})

	settingCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			value := strings.TrimSpace(args[1])
			if key == "" {
				return fmt.Errorf("setting key must not be empty")
			}
			return ctx.withStore(func(store *race.Store) error {
				if err := store.SetSetting(cmd.Context(), key, value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Setting %s = %s\n", key, value)
				return nil
			})
		},
	})

	return settingCmd
}
