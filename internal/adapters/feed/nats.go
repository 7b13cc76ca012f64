package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/okian/belay/internal/domain/types"
	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
)

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns reconnect-forever defaults on the local server.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       "belay.contest",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       2 * time.Second,
	}
}

// NATSPublisher publishes each message on <subject>.<type>.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  logger.Logger
}

// NewNATSPublisher connects to cfg.URL.
func NewNATSPublisher(cfg NATSConfig, l logger.Logger) (*NATSPublisher, error) {
	if l == nil {
		l = logger.Get().Named("feed")
	}
	ctx := context.Background()
	opts := []nats.Option{
		nats.Name("belay"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Warn(ctx, "NATS disconnected", logger.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info(ctx, "NATS reconnected", logger.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			l.Error(ctx, "NATS error", logger.Error(err))
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, subject: cfg.Subject, logger: l}, nil
}

// Subject returns the subject a message type is published on.
func (p *NATSPublisher) Subject(msgType string) string {
	return p.subject + "." + msgType
}

// Publish implements Publisher. Core NATS buffers while reconnecting, so
// this never waits on the network.
func (p *NATSPublisher) Publish(_ context.Context, msg types.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	if err := p.nc.Publish(p.Subject(msg.Type), data); err != nil {
		metrics.RecordFeedDropped("nats")
		return fmt.Errorf("publish to NATS: %w", err)
	}
	metrics.RecordFeedPublished("nats", msg.Type)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS: %w", err)
	}
	return nil
}
