// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/metrics"
	"github.com/tomtom215/linksync/internal/models"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher serializes domain events and hands them to a Watermill publisher.
type Publisher struct {
	publisher message.Publisher
	mu        sync.RWMutex
	closed    bool
}

// NewPublisher wraps pub.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{publisher: pub}
}

// Publish marshals payload as JSON and sends it on topic. The message UUID
// doubles as the JetStream dedup ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (err error) {
	defer func() { metrics.RecordEventPublish(topic, err) }()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(uuid.NewString(), data)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", topic)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// SyncRunCompleted publishes the completion event of run, logging failures.
func (p *Publisher) SyncRunCompleted(ctx context.Context, run *models.SyncRun) {
	if err := p.Publish(ctx, TopicSyncRunCompleted, NewSyncRunCompleted(run)); err != nil {
		logging.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to publish sync run event")
	}
}

// LinkArchived publishes the archive event of link, logging failures.
func (p *Publisher) LinkArchived(ctx context.Context, link *models.Link) {
	ev := LinkArchived{LinkID: link.ID, ShortCode: link.ShortCode, ArchivedAt: link.UpdatedAt}
	if err := p.Publish(ctx, TopicLinkArchived, ev); err != nil {
		logging.Warn().Err(err).Str("link_id", link.ID).Msg("Failed to publish link archived event")
	}
}

// Close closes the underlying publisher once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
