package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"trackside/internal/race"
)

func newHeatsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "heats",
		Short: "List heats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *race.Store) error {
				heats, err := store.Heats(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(heats) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No heats recorded")
					return nil
				}

				rows := make([][]string, 0, len(heats))
				for _, heat := range heats {
					rows = append(rows, []string{
						strconv.FormatInt(heat.ID, 10),
						formatDecoderTime(heat.RTCTimeStart),
						formatDecoderTime(heat.RTCTimeEnd),
						heat.RaceFlag.String(),
						yesNo(heat.Finished),
						strconv.FormatInt(heat.FirstPassID, 10),
						strconv.FormatInt(heat.LastPassID, 10),
					})
				}
				table := renderTable(
					[]string{"ID", "Start", "End", "Flag", "Finished", "First Pass", "Last Pass"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of heats to list")
	return cmd
}

func newLapsCommand(ctx *commandContext) *cobra.Command {
	var heatID int64

	cmd := &cobra.Command{
		Use:   "laps",
		Short: "List laps for a heat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *race.Store) error {
				id := heatID
				if id == 0 {
					active, err := store.ActiveHeat(cmd.Context())
					if err != nil {
						return err
					}
					if active == nil {
						return errors.New("no active heat; pick one with --heat")
					}
					id = active.ID
				}

				laps, err := store.LapsForHeat(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(laps) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No laps recorded for heat %d\n", id)
					return nil
				}

				rows := make([][]string, 0, len(laps))
				for _, lap := range laps {
					rows = append(rows, []string{
						strconv.FormatInt(lap.PassID, 10),
						kartLabel(lap),
						strconv.FormatInt(lap.Transponder, 10),
						formatLapTime(lap.LapTime),
						formatDecoderTime(lap.RTCTime),
					})
				}
				table := renderTable(
					[]string{"Pass", "Kart", "Transponder", "Lap Time", "At"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&heatID, "heat", 0, "Heat ID (defaults to the active heat)")
	return cmd
}

func kartLabel(lap *race.LapRow) string {
	switch {
	case lap.KartName != "":
		return lap.KartName
	case lap.KartNumber != 0:
		return fmt.Sprintf("#%d", lap.KartNumber)
	default:
		return "-"
	}
}

func newPassesCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "passes",
		Short: "List recent transponder passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *race.Store) error {
				passes, err := store.RecentPasses(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(passes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No passes recorded")
					return nil
				}

				rows := make([][]string, 0, len(passes))
				for _, pass := range passes {
					rows = append(rows, []string{
						strconv.FormatInt(pass.PassID, 10),
						strconv.FormatInt(pass.Transponder, 10),
						formatDecoderTime(pass.RTCTime),
						strconv.FormatInt(pass.Strength, 10),
						strconv.FormatInt(pass.Hits, 10),
						strconv.FormatInt(pass.DecoderID, 10),
					})
				}
				table := renderTable(
					[]string{"Pass", "Transponder", "RTC Time", "Strength", "Hits", "Decoder"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of passes to list")
	return cmd
}
