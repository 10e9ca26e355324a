// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffutop/pulsar-reader/device"
	"github.com/ffutop/pulsar-reader/internal/manager"
	"github.com/ffutop/pulsar-reader/internal/storage"
)

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <device-id> <field>",
		Short: "Read one field of a configured device",
		Long: `Read one field of a configured device and print its value.

With --record the reading is merged into the configured storage. The whole
snapshot is rewritten, so do not record while "pulsar poll" uses the same
storage.

Fields of pulsar-m-water devices:
  ` + fieldList(device.KindPulsarMWater),
		Args: cobra.ExactArgs(2),
		RunE: runRead,
	}
	cmd.Flags().Bool("record", false, "Record the reading in the configured storage (not while poll runs on the same storage)")
	return cmd
}

func fieldList(kind device.Kind) string {
	var names []string
	for _, f := range device.KindFields(kind) {
		names = append(names, string(f))
	}
	return strings.Join(names, "\n  ")
}

func runRead(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := promptPassword(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	m, err := manager.FromConfig(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	id, field := args[0], device.Field(args[1])
	d, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("device %q is not configured", id)
	}

	v, err := d.Read(commandContext(cmd), field)
	r := storage.Reading{Device: id, Field: string(field), At: time.Now()}
	if err != nil {
		r.Error = err.Error()
	} else {
		r.Value = v
	}

	if record, _ := cmd.Flags().GetBool("record"); record {
		store, serr := openStore(cfg.Storage)
		if serr != nil {
			return serr
		}
		defer store.Close()
		if serr := store.Record(r); serr != nil {
			return serr
		}
	}

	if err != nil {
		return fmt.Errorf("failed to read %s of %s: %w", field, id, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.String())
	return nil
}
