package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"trackside/internal/race"
)

func newKartsCommand(ctx *commandContext) *cobra.Command {
	kartsCmd := &cobra.Command{
		Use:   "karts",
		Short: "Manage transponder to kart mappings",
	}

	kartsCmd.AddCommand(newKartsListCommand(ctx))
	kartsCmd.AddCommand(newKartsSetCommand(ctx))

	return kartsCmd
}

func newKartsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List kart mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *race.Store) error {
				karts, err := store.Karts(cmd.Context())
				if err != nil {
					return err
				}
				if len(karts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No karts mapped")
					return nil
				}

				rows := make([][]string, 0, len(karts))
				for _, kart := range karts {
					number := ""
					if kart.Number != 0 {
						number = strconv.FormatInt(kart.Number, 10)
					}
					rows = append(rows, []string{
						strconv.FormatInt(kart.Transponder, 10),
						number,
						kart.Name,
					})
				}
				table := renderTable(
					[]string{"Transponder", "Number", "Name"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newKartsSetCommand(ctx *commandContext) *cobra.Command {
	var number int64

	cmd := &cobra.Command{
		Use:   "set <transponder> <name>",
		Short: "Map a transponder to a kart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			transponder, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || transponder <= 0 {
				return fmt.Errorf("invalid transponder %q", args[0])
			}
			name := kartName(args[1])
			if name == "" {
				return fmt.Errorf("kart name must not be empty")
			}

			return ctx.withStore(func(store *race.Store) error {
				kart := race.Kart{Transponder: transponder, Name: name, Number: number}
				if err := store.UpsertKart(cmd.Context(), kart); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Kart %q mapped to transponder %d\n", name, transponder)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&number, "number", 0, "Kart number")
	return cmd
}

// kartName title-cases all-lowercase input and leaves deliberate
// capitalization alone.
func kartName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == strings.ToLower(name) {
		return cases.Title(language.Und).String(name)
	}
	return name
}
