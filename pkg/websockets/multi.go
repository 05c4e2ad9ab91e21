package websockets

import (
	"context"
	"errors"
)

// MultiPublisher fans a message out to several publishers.
type MultiPublisher []Publisher

// Publish delivers to every publisher and joins their errors.
func (m MultiPublisher) Publish(ctx context.Context, message Message) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
