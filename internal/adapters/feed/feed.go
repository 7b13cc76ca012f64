// Package feed pushes contest snapshots and alerts to displays. The hub
// serves WebSocket clients; the NATS publisher fans the same messages out
// to other processes.
package feed

import (
	"context"
	"errors"

	"github.com/okian/belay/internal/domain/types"
)

// Publisher sends a message to displays. Implementations must not block the
// caller on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, msg types.Message) error
	Close() error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, msg types.Message) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Publisher.
func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
