// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/ffutop/pulsar-reader/pulsar"
	"github.com/ffutop/pulsar-reader/pulsar/frame"
	"github.com/ffutop/pulsar-reader/transport"
)

// Server answers Pulsar requests on a TCP port, the way a serial device
// server with meters behind it would.
type Server struct {
	Address string
	Handler transport.RequestHandler

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new TCP Server.
func NewServer(address string) *Server {
	return &Server{
		Address: address,
	}
}

// Listen binds the server address. Start calls it when the server is not
// bound yet.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr(), nil
	}
	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}
	s.listener = listener
	return listener.Addr(), nil
}

// Start serves connections until ctx is done.
func (s *Server) Start(ctx context.Context, handler transport.RequestHandler) error {
	s.Handler = handler
	addr, err := s.Listen()
	if err != nil {
		return err
	}
	slog.Info("Pulsar TCP server listening", "addr", addr)

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	for {
		conn, err := listener.Accept()
		if err != nil {
			// Check if closed
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("Failed to accept connection", "err", err)
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

// Close closes the server listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	slog.Info("New TCP client connected", "addr", conn.RemoteAddr())

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buf := make([]byte, pulsar.MaxFrameSize)
	for {
		raw, err := readRequest(conn, buf)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				slog.Info("TCP client disconnected", "addr", conn.RemoteAddr())
			} else {
				slog.Error("Failed to read from connection", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}

		req, err := frame.Decode(raw)
		if err != nil {
			slog.Warn("Failed to decode Pulsar request", "request", hex.EncodeToString(raw), "err", err)
			continue
		}

		if s.Handler == nil {
			slog.Error("No handler defined for TCP server")
			return
		}

		respPdu, ok := s.Handler(ctx, req)
		if !ok {
			slog.Debug("Request left unanswered", "address", req.Address, "func", pulsar.FunctionName(req.Pdu.FunctionCode))
			continue
		}

		// Construct Response ADU
		respAdu := &frame.ApplicationDataUnit{
			Address:   req.Address,
			Pdu:       respPdu,
			RequestID: req.RequestID,
		}
		respRaw, err := respAdu.Encode()
		if err != nil {
			slog.Error("Failed to encode Pulsar response", "err", err)
			continue
		}

		if _, err := conn.Write(respRaw); err != nil {
			slog.Error("Failed to write response to connection", "err", err)
			return
		}
	}
}

// readRequest reads one frame: the header first, then the rest announced by
// the length byte.
func readRequest(r io.Reader, buf []byte) ([]byte, error) {
	if _, err := io.ReadFull(r, buf[:pulsar.HeaderSize]); err != nil {
		return nil, err
	}
	length := int(buf[pulsar.HeaderSize-1])
	if length < pulsar.ServiceSize {
		return nil, fmt.Errorf("%w: length byte %d", pulsar.ErrFrameTooShort, length)
	}
	if _, err := io.ReadFull(r, buf[pulsar.HeaderSize:length]); err != nil {
		return nil, err
	}
	return buf[:length], nil
}
