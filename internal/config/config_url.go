// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	httpSchemes = []string{"http", "https"}
	natsSchemes = []string{"nats", "tls", "ws", "wss"}
)

// checkURL parses raw and requires one of schemes and a host. With baseOnly
// set, paths other than "/" and query strings are rejected.
func checkURL(field, raw string, baseOnly bool, schemes []string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("%s: scheme %q not allowed (want %s)", field, u.Scheme, strings.Join(schemes, ", "))
	}
	if u.Host == "" {
		return fmt.Errorf("%s: host is required", field)
	}
	if !baseOnly {
		return nil
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("%s: must be a base URL, remove path %q", field, u.Path)
	}
	if u.RawQuery != "" {
		return fmt.Errorf("%s: must not carry a query string", field)
	}
	return nil
}
