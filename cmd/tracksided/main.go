// Command tracksided runs the trackside daemon without the CLI wrapper. It
// exists for service managers; `trackside run` is the same daemon with
// friendlier flag handling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"trackside/internal/config"
	"trackside/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracksided: load config: %v\n", err)
		os.Exit(1)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "tracksided: %v\n", err)
		os.Exit(1)
	}
}
