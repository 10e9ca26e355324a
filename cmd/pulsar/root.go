// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ffutop/pulsar-reader/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pulsar",
		Short: "Pulsar meter reader",
		Long: `Pulsar - read Pulsar water meters over a serial line, a serial device
server (TCP) or a serial-to-WebSocket bridge.

Connection modes (connection.address or --address):
  Serial:    /dev/ttyUSB0, COM3
  TCP:       192.168.1.50:4001
  WebSocket: ws://host/path, wss://host/path

For WebSocket authentication the password is read from
PULSAR_CONNECTION_WEBSOCKET_PASSWORD, or prompted interactively if not set.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "Path to config file")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-file", "", "Log file path")
	pf.StringP("address", "a", "", "Connection address (serial device, host:port or ws:// URL)")
	pf.Duration("timeout", 0, "Reply timeout")

	root.AddCommand(
		newPollCmd(),
		newReadCmd(),
		newLastCmd(),
		newFrameCmd(),
		newSimulateCmd(),
	)
	return root
}

// loadConfig reads the configuration selected by the command's flags and
// installs the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.Log, cmd.ErrOrStderr())
	return cfg, nil
}

func setupLogger(cfg config.LogConfig, stderr io.Writer) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
