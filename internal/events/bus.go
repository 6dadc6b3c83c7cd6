// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/linksync/internal/config"
	"github.com/tomtom215/linksync/internal/logging"
)

// Bus owns the event publisher and, when embedded, the NATS server.
type Bus struct {
	publisher *Publisher
	channel   *gochannel.GoChannel
	server    *EmbeddedServer
	running   atomic.Bool
}

// New builds the bus described by cfg.
func New(ctx context.Context, cfg *config.NATSConfig) (*Bus, error) {
	logger := logging.NewWatermillAdapter()
	if !cfg.Enabled {
		return NewInMemory(logger), nil
	}

	bus := &Bus{}
	natsURL := cfg.URL
	if cfg.EmbeddedServer {
		srv, err := NewEmbeddedServer(cfg.URL, cfg.StoreDir, cfg.MaxMemory, cfg.MaxStore)
		if err != nil {
			return nil, err
		}
		bus.server = srv
		natsURL = srv.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	}

	if err := ensureStream(ctx, natsURL, cfg.MaxStore); err != nil {
		bus.shutdownServer()
		return nil, err
	}

	pub, err := newNATSPublisher(natsURL, logger)
	if err != nil {
		bus.shutdownServer()
		return nil, err
	}
	bus.publisher = NewPublisher(pub)
	return bus, nil
}

// NewInMemory returns a bus backed by a Watermill GoChannel.
func NewInMemory(logger watermill.LoggerAdapter) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	return &Bus{publisher: NewPublisher(ch), channel: ch}
}

func newNATSPublisher(natsURL string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         natsURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// Publisher returns the domain event publisher.
func (b *Bus) Publisher() *Publisher {
	return b.publisher
}

// Subscribe listens on topic. Only the in-memory bus supports it; it exists
// for in-process consumers and tests.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if b.channel == nil {
		return nil, errors.New("subscribe is only supported on the in-memory bus")
	}
	return b.channel.Subscribe(ctx, topic)
}

// Start marks the bus running. It has no background work of its own.
func (b *Bus) Start(_ context.Context) error {
	b.running.Store(true)
	return nil
}

// Shutdown closes the publisher and stops the embedded server.
func (b *Bus) Shutdown(_ context.Context) {
	b.running.Store(false)
	if err := b.publisher.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close event publisher")
	}
	b.shutdownServer()
}

// IsRunning reports whether the bus is started and its server, if any, is up.
func (b *Bus) IsRunning() bool {
	if b.server != nil && !b.server.IsRunning() {
		return false
	}
	return b.running.Load()
}

func (b *Bus) shutdownServer() {
	if b.server != nil {
		b.server.Shutdown()
		b.server = nil
	}
}
