package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trackside/internal/race"
)

func newFlagCommand(ctx *commandContext) *cobra.Command {
	flagCmd := &cobra.Command{
		Use:   "flag",
		Short: "Show or set the green flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *race.Store) error {
				raised, err := store.GreenFlag(cmd.Context())
				if err != nil {
					return err
				}
				if raised {
					fmt.Fprintln(cmd.OutOrStdout(), "Green flag is raised")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Green flag is not raised")
				}
				return nil
			})
		},
	}

	flagCmd.AddCommand(&cobra.Command{
		Use:   "green",
		Short: "Raise the green flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *race.Store) error {
				if err := store.SetGreenFlag(cmd.Context(), true); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Green flag raised; the next pass opens a heat")
				return nil
			})
		},
	})

	flagCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the green flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *race.Store) error {
				if err := store.SetGreenFlag(cmd.Context(), false); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Green flag cleared")
				return nil
			})
		},
	})

	return flagCmd
}
