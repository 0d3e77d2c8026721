// Package writer persists accepted snapshots as spot, future and option
// files to S3 or a local directory.
package writer

import (
	"context"
	"errors"

	"optionflow/models"
)

// Sink stores one snapshot. A Sink either stores every file of the
// snapshot or returns an error.
type Sink interface {
	Write(ctx context.Context, runID string, snap models.Snapshot) error
}

// Multi fans a snapshot out to several sinks and joins their errors.
type Multi []Sink

func (m Multi) Write(ctx context.Context, runID string, snap models.Snapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, runID, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
