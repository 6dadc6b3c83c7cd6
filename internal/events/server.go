// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package events

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer is an in-process NATS server with JetStream enabled.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts a JetStream server listening on the host and port
// of listenURL.
func NewEmbeddedServer(listenURL, storeDir string, maxMem, maxStore int64) (*EmbeddedServer, error) {
	host, port, err := hostPort(listenURL)
	if err != nil {
		return nil, err
	}

	opts := &server.Options{
		ServerName:         "linksync-events",
		Host:               host,
		Port:               port,
		JetStream:          true,
		StoreDir:           storeDir,
		JetStreamMaxMemory: maxMem,
		JetStreamMaxStore:  maxStore,
		NoLog:              true,
		NoSigs:             true,
		MaxPayload:         1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the URL clients should connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for it to exit.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// hostPort splits a nats:// URL. Port -1 asks nats-server for a random port.
func hostPort(raw string) (string, int, error) {
	_, hostport, found := strings.Cut(raw, "://")
	if !found {
		hostport = raw
	}
	hostport, _, _ = strings.Cut(hostport, "/")
	if hostport == "" {
		return "", 0, fmt.Errorf("invalid NATS URL %q", raw)
	}
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, 4222, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid NATS port %q: %w", portStr, err)
	}
	return host, port, nil
}
