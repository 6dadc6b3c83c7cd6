// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

// Package config loads and validates Linksync configuration.
//
// Configuration is layered with koanf, later layers overriding earlier ones:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/linksync/config.yaml)
//  3. Environment variables (explicit allow-list, see envTransformFunc)
//
// Provider credentials (PROVIDER_ACCESS_TOKEN, PROVIDER_ORGANIZATION_ID) are
// only ever read from the deployment environment or config file and are never
// written to the database.
//
// Example config.yaml:
//
//	provider:
//	  base_url: https://api-ssl.bitly.com
//	  short_domains: [bit.ly]
//	sync:
//	  schedule: "0 3 * * *"
//	  concurrency: 4
//	database:
//	  path: /data/linksync.duckdb
package config
