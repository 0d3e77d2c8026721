// Package change decides whether a freshly parsed snapshot is a new market
// moment by comparing its future price time with the stored reference.
package change

import (
	"context"
	"errors"
	"fmt"
	"time"

	"optionflow/logger"
	"optionflow/models"
)

// ErrReferenceConflict reports that another writer changed the reference
// between read and swap. Callers retry the whole detection.
var ErrReferenceConflict = errors.New("change reference conflict")

// Reference is the last accepted future quote and the revision the store
// assigned to it.
type Reference struct {
	Future   models.FutureQuote
	Revision int64
}

// ReferenceStore holds the single change reference.
//
// ReadCurrent returns nil when no reference has been stored yet.
// CompareAndSwap replaces the reference only if its revision still equals
// expected (0 meaning absent) and fails with ErrReferenceConflict otherwise.
// A nil next removes the reference and returns nil.
type ReferenceStore interface {
	ReadCurrent(ctx context.Context) (*Reference, error)
	CompareAndSwap(ctx context.Context, expected int64, next *models.FutureQuote) (*Reference, error)
}

// Reason explains a Decision.
type Reason string

const (
	ReasonFirstReference Reason = "first_reference"
	ReasonNewMinute      Reason = "new_minute"
	ReasonDuplicate      Reason = "duplicate_minute"
	ReasonNoPriceTime    Reason = "no_price_time"
)

// Decision is the outcome of Detect. Previous is the reference that was in
// place before an accepted swap and Current what the store holds now.
type Decision struct {
	Accepted bool
	Reason   Reason
	Previous *Reference
	Current  *Reference
}

type Detector struct {
	store ReferenceStore
	log   *logger.Log
}

func NewDetector(store ReferenceStore) *Detector {
	return &Detector{store: store, log: logger.GetLogger()}
}

// Detect compares the hour and minute of future's price time, in JST, with
// the stored reference. The date is ignored: the page only shows HH:MM,
// and an idle market repeats the same minute across midnight. A quote
// without a price time is never accepted and leaves the store untouched.
func (d *Detector) Detect(ctx context.Context, future models.FutureQuote) (Decision, error) {
	log := d.log.WithComponent("change_detector").WithFields(logger.Fields{"operation": "detect"})

	priceTime, ok := future.PriceTime.Get()
	if !ok {
		log.Debug("future price has no price time")
		return Decision{Reason: ReasonNoPriceTime}, nil
	}

	current, err := d.store.ReadCurrent(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("read change reference: %w", err)
	}

	reason := ReasonFirstReference
	var expected int64
	if current != nil {
		expected = current.Revision
		prevTime, ok := current.Future.PriceTime.Get()
		if ok && sameMinute(prevTime, priceTime) {
			log.WithFields(logger.Fields{
				"price_time": priceTime.In(models.JST).Format("15:04"),
				"revision":   current.Revision,
			}).Debug("future price has not moved")
			return Decision{Reason: ReasonDuplicate, Previous: current, Current: current}, nil
		}
		reason = ReasonNewMinute
	}

	next, err := d.store.CompareAndSwap(ctx, expected, &future)
	if err != nil {
		return Decision{}, err
	}

	log.WithFields(logger.Fields{
		"price_time": priceTime.In(models.JST).Format("15:04"),
		"revision":   next.Revision,
		"reason":     string(reason),
	}).Info("change reference updated")

	return Decision{Accepted: true, Reason: reason, Previous: current, Current: next}, nil
}

// Restore puts back the reference that an accepted decision replaced, so a
// cycle whose snapshot never reached the sink can be retried.
func (d *Detector) Restore(ctx context.Context, decision Decision) error {
	if !decision.Accepted || decision.Current == nil {
		return nil
	}

	var prev *models.FutureQuote
	if decision.Previous != nil {
		f := decision.Previous.Future
		prev = &f
	}
	if _, err := d.store.CompareAndSwap(ctx, decision.Current.Revision, prev); err != nil {
		return fmt.Errorf("restore change reference: %w", err)
	}

	d.log.WithComponent("change_detector").WithFields(logger.Fields{
		"revision": decision.Current.Revision,
	}).Warn("change reference restored")
	return nil
}

func sameMinute(a, b time.Time) bool {
	return a.In(models.JST).Format("15:04") == b.In(models.JST).Format("15:04")
}
