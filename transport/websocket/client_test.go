// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package websocket

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ffutop/pulsar-reader/internal/config"
	"github.com/ffutop/pulsar-reader/pulsar/frame"
)

// startBridge runs a fake serial bridge. handle receives every binary
// message and writes the reply on conn.
func startBridge(t *testing.T, handle func(conn *websocket.Conn, msg []byte)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if ok && (user != "meter" || pass != "secret") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			messageType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType == websocket.BinaryMessage {
				handle(conn, msg)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_Send(t *testing.T) {
	response, err := frame.BuildRequest(1234, 0x01, []byte{0x39, 0x30, 0x00, 0x00}, 5)
	if err != nil {
		t.Fatal(err)
	}
	srv := startBridge(t, func(conn *websocket.Conn, msg []byte) {
		// Split the reply and mix in a status message.
		conn.WriteMessage(websocket.BinaryMessage, response[:3])
		conn.WriteMessage(websocket.TextMessage, []byte("status: ok"))
		conn.WriteMessage(websocket.BinaryMessage, response[3:])
	})

	client := NewClient(config.WebSocketConfig{URL: wsURL(srv), Username: "meter", Password: "secret"}, time.Second)
	defer client.Close()

	got, err := client.Send(context.Background(), []byte{0x01, 0x02}, len(response))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !bytes.Equal(got, response) {
		t.Errorf("Response mismatch.\nWant: %X\nGot:  %X", response, got)
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := startBridge(t, func(conn *websocket.Conn, msg []byte) {
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x00, 0x00})
	})

	client := NewClient(config.WebSocketConfig{URL: wsURL(srv)}, 100*time.Millisecond)
	defer client.Close()

	got, err := client.Send(context.Background(), []byte{0x01}, 14)
	if err != nil {
		t.Fatalf("timeout must not be reported as an error, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 bytes received before the timeout, got %X", got)
	}

	// The broken connection is replaced on the next exchange.
	if _, err := client.Send(context.Background(), []byte{0x01}, 14); err != nil {
		t.Fatalf("Send after timeout failed: %v", err)
	}
}

func TestClient_BadCredentials(t *testing.T) {
	srv := startBridge(t, func(conn *websocket.Conn, msg []byte) {})

	client := NewClient(config.WebSocketConfig{URL: wsURL(srv), Username: "meter", Password: "wrong"}, time.Second)
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected handshake failure")
	}
}

func TestClient_InvalidScheme(t *testing.T) {
	client := NewClient(config.WebSocketConfig{URL: "http://localhost:1"}, time.Second)
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected scheme error")
	}
}
