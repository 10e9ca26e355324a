// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ffutop/pulsar-reader/internal/config"
	"github.com/ffutop/pulsar-reader/internal/manager"
	"github.com/ffutop/pulsar-reader/internal/poller"
	"github.com/ffutop/pulsar-reader/internal/storage"
)

func newPollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll every configured device until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runPoll,
	}
	cmd.Flags().Duration("interval", 0, "Polling interval")
	cmd.Flags().String("storage", "", "Storage type (memory, file, mmap)")
	cmd.Flags().String("data", "", "Storage file path")
	return cmd
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(cfg.Devices) == 0 {
		return fmt.Errorf("no devices configured")
	}
	if err := promptPassword(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	m, err := manager.FromConfig(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting Pulsar reader...", "address", cfg.Connection.Address, "storage", cfg.Storage.Type)
	err = poller.New(m, store, cfg.Poll.Interval).Run(ctx)
	slog.Info("Goodbye.")
	return err
}

func openStore(cfg config.StorageConfig) (*storage.Store, error) {
	backend, err := storage.New(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// commandContext returns the command's context, never nil.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
