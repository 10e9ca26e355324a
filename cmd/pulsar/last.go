// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffutop/pulsar-reader/internal/storage"
)

func newLastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "last [device-id]",
		Short: "Print the last stored readings",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLast,
	}
	cmd.Flags().String("storage", "", "Storage type (memory, file, mmap)")
	cmd.Flags().String("data", "", "Storage file path")
	return cmd
}

func runLast(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	var readings []storage.Reading
	if len(args) == 1 {
		readings = store.Device(args[0])
	} else {
		readings = store.All()
	}
	if len(readings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no readings")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tFIELD\tVALUE\tAT")
	for _, r := range readings {
		value := r.Value.String()
		if !r.Available() {
			value = "unavailable (" + r.Error + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Device, r.Field, value, r.At.Local().Format(time.DateTime))
	}
	return w.Flush()
}
