package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trackside/internal/p3"
	"trackside/internal/timesync"
)

func newDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "decode <hex>",
		Short:       "Decode P3 frames from hex",
		Long:        "Decodes one or more escaped P3 frames given as hex, e.g. from a wire capture.",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseHexFrame(strings.Join(args, ""))
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			for _, frame := range p3.SplitRecords(raw) {
				msg, err := p3.Decode(frame)
				if err != nil {
					return fmt.Errorf("decode frame: %w", err)
				}
				printMessage(stdout, msg)
			}
			return nil
		},
	}
}

func newSendCommand(ctx *commandContext) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "send <hex>|gettime",
		Short: "Send a raw frame to the decoder and print replies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var frame []byte
			if len(args) == 1 && strings.EqualFold(strings.TrimSpace(args[0]), "gettime") {
				frame = p3.BuildGetTime()
			} else {
				frame, err = parseHexFrame(strings.Join(args, ""))
				if err != nil {
					return err
				}
			}

			addr := cfg.DecoderAddr()
			conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
			if err != nil {
				return fmt.Errorf("dial decoder %s: %w", addr, err)
			}
			defer conn.Close()

			if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return err
			}
			if _, err := conn.Write(frame); err != nil {
				return fmt.Errorf("send frame: %w", err)
			}

			replies, err := collectReplies(conn, wait)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			frames := p3.SplitRecords(replies)
			if len(frames) == 0 {
				fmt.Fprintln(stdout, "No reply within the wait window")
				return nil
			}
			for _, reply := range frames {
				msg, err := p3.Decode(reply)
				if err != nil {
					fmt.Fprintf(stdout, "undecodable reply (% x): %v\n", reply, err)
					continue
				}
				printMessage(stdout, msg)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "How long to collect reply frames")
	return cmd
}

// collectReplies reads until the decoder goes quiet for the wait window or
// closes the connection.
func collectReplies(conn net.Conn, wait time.Duration) ([]byte, error) {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	deadline := time.Now().Add(wait)
	var replies []byte
	buf := make([]byte, 4096)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		n, err := conn.Read(buf)
		if n > 0 {
			replies = append(replies, buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
				return replies, nil
			}
			return replies, fmt.Errorf("read reply: %w", err)
		}
	}
}

func newTimeCommand(ctx *commandContext) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "time",
		Short: "Query the decoder clock",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			addr := strings.TrimSpace(server)
			if addr == "" {
				addr = strings.TrimSpace(cfg.TimeSync.Server)
			}
			if addr == "" {
				addr = strings.TrimSpace(cfg.TimeSync.Listen)
			}
			if addr == "" {
				return errors.New("no time server configured; set [timesync] listen or pass --server")
			}

			micros, synced, err := timesync.Query(cmd.Context(), addr, 5*time.Second)
			if err != nil {
				return fmt.Errorf("query time server %s: %w", addr, err)
			}

			stdout := cmd.OutOrStdout()
			if !synced {
				fmt.Fprintln(stdout, "Decoder time not available yet")
				return nil
			}
			fmt.Fprintf(stdout, "Decoder time: %s (%d)\n", formatDecoderTime(micros), micros)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Time server address (defaults to the configured one)")
	return cmd
}

// parseHexFrame accepts hex with optional whitespace, colons, and 0x
// prefixes.
func parseHexFrame(raw string) ([]byte, error) {
	cleaned := strings.NewReplacer(" ", "", "\t", "", "\n", "", ":", "", "0x", "", "0X", "").Replace(raw)
	if cleaned == "" {
		return nil, errors.New("empty frame")
	}
	frame, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("parse hex frame: %w", err)
	}
	return frame, nil
}

func printMessage(w io.Writer, msg *p3.Message) {
	crc := "ok"
	if !msg.CRCOK {
		crc = "mismatch"
	}
	fmt.Fprintf(w, "%s version=0x%02x length=%d flags=0x%04x crc=%s\n",
		msg.Type, msg.Version, msg.Length, msg.Flags, crc)
	for _, field := range msg.Fields {
		name := p3.FieldName(msg.Type, field.Tag)
		if name == "" {
			name = fmt.Sprintf("tag_0x%02x", field.Tag)
		}
		switch name {
		case "rtc_time", "utc_time":
			fmt.Fprintf(w, "  %-16s %d (%s)\n", name+":", field.Uint(), formatDecoderTime(int64(field.Uint())))
		default:
			fmt.Fprintf(w, "  %-16s %d (0x%x)\n", name+":", field.Uint(), field.Value)
		}
	}
}
