// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/ffutop/pulsar-reader/internal/config"
)

// promptPassword asks for the WebSocket password when a username is
// configured without one. Nothing is asked when stdin is not a terminal.
func promptPassword(cfg *config.Config, stderr io.Writer) error {
	ws := &cfg.Connection.WebSocket
	if cfg.Connection.TransportType() != config.TransportWebSocket || ws.Username == "" || ws.Password != "" {
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}

	fmt.Fprint(stderr, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	ws.Password = string(pw)
	return nil
}
