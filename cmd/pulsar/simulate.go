// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffutop/pulsar-reader/internal/config"
	"github.com/ffutop/pulsar-reader/internal/simulator"
	"github.com/ffutop/pulsar-reader/transport/tcp"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve simulated meters on a TCP port",
		Long: `Serve simulated Pulsar water meters on a TCP port, the way a serial device
server with meters behind it would. Point connection.address at the listen
address to bench test the reader without hardware.`,
		Example: `  pulsar simulate --listen 127.0.0.1:4001 --meters 1234,5000-5002 --flow 5`,
		Args:    cobra.NoArgs,
		RunE:    runSimulate,
	}
	cmd.Flags().String("listen", "127.0.0.1:4001", "Listen address")
	cmd.Flags().String("meters", "1", "Meter addresses (e.g. 1234,5000-5002)")
	cmd.Flags().Uint32("flow", 0, "Liters added to channel 1 of every meter per second")
	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	file, _ := cmd.Flags().GetString("log-file")
	setupLogger(config.LogConfig{Level: level, File: file}, cmd.ErrOrStderr())

	listen, _ := cmd.Flags().GetString("listen")
	list, _ := cmd.Flags().GetString("meters")
	flow, _ := cmd.Flags().GetUint32("flow")

	addrs, err := simulator.ParseAddresses(list)
	if err != nil {
		return err
	}
	bus := simulator.NewBus()
	meters := make([]*simulator.Meter, 0, len(addrs))
	for _, a := range addrs {
		m := simulator.NewMeter(a)
		if err := bus.Add(m); err != nil {
			return err
		}
		meters = append(meters, m)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flow > 0 {
		go runFlow(ctx, meters, flow)
	}

	slog.Info("Starting meter simulator", "meters", len(meters), "listen", listen)
	return tcp.NewServer(listen).Start(ctx, bus.Handle)
}

func runFlow(ctx context.Context, meters []*simulator.Meter, liters uint32) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, m := range meters {
				m.AddVolume(1, liters)
			}
		}
	}
}
