package app

import (
	"context"
	"errors"

	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"
)

// multiPublisher hands each signal to several publishers.
type multiPublisher []ports.SignalPublisher

// CombinePublishers returns a publisher that forwards to every non-nil
// publisher given. It returns nil when none remain, and the publisher itself
// when only one does.
func CombinePublishers(pubs ...ports.SignalPublisher) ports.SignalPublisher {
	var out multiPublisher
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// PublishSignal publishes to every publisher, even when an earlier one fails.
func (m multiPublisher) PublishSignal(ctx context.Context, result *domain.SignalResult) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishSignal(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
