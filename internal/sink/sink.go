// Package sink writes derived snapshots to output destinations.
package sink

import (
	"context"
	"errors"

	"vtokenScope/internal/model"
)

// Sink receives batches of snapshots.
type Sink interface {
	Write(ctx context.Context, snapshots []model.Snapshot) error
	Close() error
}

// Multi fans a batch out to every sink, returning all write errors joined.
type Multi []Sink

func (m Multi) Write(ctx context.Context, snapshots []model.Snapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, snapshots); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
