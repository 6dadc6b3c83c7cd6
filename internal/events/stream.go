// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package events

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const streamName = "LINKSYNC"

var streamSubjects = []string{"sync.>", "link.>"}

// ensureStream creates or updates the event stream so publishers never need
// to auto-provision it.
func ensureStream(ctx context.Context, natsURL string, maxBytes int64) error {
	nc, err := natsgo.Connect(natsURL, natsgo.Timeout(10*time.Second))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	if maxBytes <= 0 {
		maxBytes = -1
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   streamSubjects,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     30 * 24 * time.Hour,
		MaxBytes:   maxBytes,
		Duplicates: 2 * time.Minute,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", streamName, err)
	}
	return nil
}
