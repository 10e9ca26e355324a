// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ffutop/pulsar-reader/pulsar"
	"github.com/ffutop/pulsar-reader/pulsar/frame"
)

func newFrameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frame <address> <function> [payload-hex]",
		Short: "Encode a request frame, or decode one with --decode",
		Example: `  pulsar frame 12345678 0x04
  pulsar frame 1234 0x0A 0a00 --id 7
  pulsar frame --decode 000012340a0c0a0007009452`,
		Args: func(cmd *cobra.Command, args []string) error {
			if d, _ := cmd.Flags().GetString("decode"); d != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(2, 3)(cmd, args)
		},
		RunE: runFrame,
	}
	cmd.Flags().Uint16("id", 1, "Request ID")
	cmd.Flags().String("decode", "", "Hex frame to decode")
	return cmd
}

func runFrame(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if raw, _ := cmd.Flags().GetString("decode"); raw != "" {
		data, err := parseHex(raw)
		if err != nil {
			return err
		}
		adu, err := frame.Decode(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "address:  %d\n", adu.Address)
		fmt.Fprintf(out, "function: 0x%02X (%s)\n", adu.Pdu.FunctionCode, pulsar.FunctionName(adu.Pdu.FunctionCode))
		fmt.Fprintf(out, "length:   %d\n", len(data))
		fmt.Fprintf(out, "payload:  %s\n", hex.EncodeToString(adu.Pdu.Data))
		fmt.Fprintf(out, "id:       %d\n", adu.RequestID)
		return nil
	}

	address, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", args[0], err)
	}
	function, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid function %q: %w", args[1], err)
	}
	var payload []byte
	if len(args) == 3 {
		if payload, err = parseHex(args[2]); err != nil {
			return err
		}
	}
	id, _ := cmd.Flags().GetUint16("id")

	data, err := frame.BuildRequest(uint32(address), byte(function), payload, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hex.EncodeToString(data))
	return nil
}

// parseHex accepts "0a00", "0A 00" and "0x0a00".
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	s = strings.NewReplacer(" ", "", ":", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return data, nil
}
