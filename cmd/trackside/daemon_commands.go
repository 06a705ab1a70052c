package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trackside/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, decoder, and heat status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ipc.Dial(ctx.socketPath())
			if err != nil {
				if daemonNotRunning(err) {
					fmt.Fprintln(stdout, "Daemon is not running; start it with `trackside run`")
					return nil
				}
				return wrapDialError(err, ctx.socketPath())
			}
			defer client.Close()

			resp, err := client.Status()
			if err != nil {
				return fmt.Errorf("query status: %w", err)
			}
			if resp == nil {
				return errors.New("status response missing")
			}

			renderStatus(stdout, resp, shouldColorize(stdout))
			return nil
		},
	}
}

func renderStatus(w io.Writer, resp *ipc.StatusResponse, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(w, line)
	}
	running := statusKindFromBool(resp.Running)
	runningMsg := "stopped"
	if resp.Running {
		runningMsg = fmt.Sprintf("pid %d", resp.PID)
	}
	fmt.Fprintln(w, renderStatusLine("Running", running, runningMsg, colorize))
	if len(resp.Roles) > 0 {
		fmt.Fprintln(w, renderStatusLine("Roles", statusInfo, strings.Join(resp.Roles, ", "), colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Database", statusInfo, resp.DatabasePath, colorize))
	greenKind := statusInfo
	greenMsg := "not raised"
	if resp.GreenFlag {
		greenKind = statusOK
		greenMsg = "raised"
	}
	fmt.Fprintln(w, renderStatusLine("Green flag", greenKind, greenMsg, colorize))
	fmt.Fprintln(w)

	for _, line := range renderSectionHeader("Decoder", colorize) {
		fmt.Fprintln(w, line)
	}
	switch {
	case !resp.Decoder.Enabled:
		fmt.Fprintln(w, renderStatusLine("Connection", statusInfo, "disabled in config", colorize))
	case resp.Decoder.Connected:
		fmt.Fprintln(w, renderStatusLine("Connection", statusOK, "connected to "+resp.Decoder.Address, colorize))
	default:
		fmt.Fprintln(w, renderStatusLine("Connection", statusWarn, "not connected to "+resp.Decoder.Address, colorize))
	}
	if resp.Decoder.Enabled {
		if resp.Decoder.SessionID != "" {
			fmt.Fprintln(w, renderStatusLine("Session", statusInfo, resp.Decoder.SessionID, colorize))
		}
		counters := fmt.Sprintf("%d frames, %d dropped bytes, %d reconnects",
			resp.Decoder.Frames, resp.Decoder.Dropped, resp.Decoder.Reconnects)
		fmt.Fprintln(w, renderStatusLine("Counters", statusInfo, counters, colorize))
	}
	fmt.Fprintln(w)

	for _, line := range renderSectionHeader("Decoder clock", colorize) {
		fmt.Fprintln(w, line)
	}
	if resp.Clock.Synced {
		age := time.Duration(resp.Clock.AgeMillis) * time.Millisecond
		detail := fmt.Sprintf("%s (synced %s ago)", formatDecoderTime(resp.Clock.DecoderTime), formatAge(age))
		fmt.Fprintln(w, renderStatusLine("Decoder time", statusOK, detail, colorize))
	} else {
		fmt.Fprintln(w, renderStatusLine("Decoder time", statusWarn, "not synced", colorize))
	}
	fmt.Fprintln(w)

	for _, line := range renderSectionHeader("Heat", colorize) {
		fmt.Fprintln(w, line)
	}
	if resp.Heat.Active {
		fmt.Fprintln(w, renderStatusLine("Active", statusOK, fmt.Sprintf("heat %d (%s)", resp.Heat.ID, resp.Heat.Phase), colorize))
	} else {
		phase := resp.Heat.Phase
		if phase == "" {
			phase = "engine not running"
		}
		fmt.Fprintln(w, renderStatusLine("Active", statusInfo, "none ("+phase+")", colorize))
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the trackside daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ipc.Dial(ctx.socketPath())
			if err != nil {
				if daemonNotRunning(err) {
					fmt.Fprintln(stdout, "Daemon is not running")
					return nil
				}
				return wrapDialError(err, ctx.socketPath())
			}
			defer client.Close()

			resp, err := client.Stop()
			if err != nil {
				return fmt.Errorf("stop daemon: %w", err)
			}
			if resp != nil && resp.Stopped {
				fmt.Fprintln(stdout, "Daemon stopped")
			} else {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			return nil
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check race database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DatabaseHealth()
				if err != nil {
					return fmt.Errorf("query database health: %w", err)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, line := range renderSectionHeader("Database Health", colorize) {
					fmt.Fprintln(stdout, line)
				}

				fileKind := statusOK
				fileMsg := resp.DBPath
				if !resp.DatabaseExists {
					fileKind = statusError
					fileMsg = resp.DBPath + " (missing)"
				}
				fmt.Fprintln(stdout, renderStatusLine("Database", fileKind, fileMsg, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Readable", statusKindFromBool(resp.DatabaseReadable), "", colorize))

				if len(resp.MissingTables) > 0 {
					fmt.Fprintln(stdout, renderStatusLine("Tables", statusError, "missing: "+strings.Join(resp.MissingTables, ", "), colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Tables", statusOK, strings.Join(resp.TablesPresent, ", "), colorize))
				}

				integrity := statusOK
				if !resp.IntegrityCheck {
					integrity = statusError
				}
				fmt.Fprintln(stdout, renderStatusLine("Integrity", integrity, "", colorize))

				rows := fmt.Sprintf("%d passes, %d laps, %d heats", resp.PassCount, resp.LapCount, resp.HeatCount)
				fmt.Fprintln(stdout, renderStatusLine("Rows", statusInfo, rows, colorize))

				if resp.Error != "" {
					fmt.Fprintln(stdout, renderStatusLine("Error", statusError, resp.Error, colorize))
				}
				return nil
			})
		},
	}
}
