// Package pipeline runs ingestion cycles: fetch the option price pages,
// parse them, gate on the change detector and hand new snapshots to the
// sink.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"optionflow/internal/change"
	"optionflow/internal/metrics"
	"optionflow/logger"
	"optionflow/models"
	"optionflow/processor"
	"optionflow/reader"
	"optionflow/writer"

	"github.com/google/uuid"
)

// Fetcher downloads one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Options struct {
	// URLs lists the primary maturity page first.
	URLs            []string
	ConflictRetries int
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Result describes one cycle.
type Result struct {
	RunID    string
	Decision change.Decision
	Snapshot models.Snapshot
	Written  bool
}

type Pipeline struct {
	fetcher  Fetcher
	detector *change.Detector
	sink     writer.Sink
	opts     Options
	now      func() time.Time
	log      *logger.Log
}

func New(fetcher Fetcher, detector *change.Detector, sink writer.Sink, opts Options) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		detector: detector,
		sink:     sink,
		opts:     opts,
		now:      time.Now,
		log:      logger.GetLogger(),
	}
}

// RunOnce performs a single cycle. Any fetch, extraction or parse failure
// aborts the cycle before the reference is read. A rejected snapshot is
// not written. When the sink fails the reference is restored.
func (p *Pipeline) RunOnce(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.New().String()}
	start := time.Now()
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"run_id": res.RunID})

	if len(p.opts.URLs) == 0 {
		err := errors.New("no source urls configured")
		p.fail(log, "config", err)
		return res, err
	}

	now := p.now()
	pages := make([]*processor.Page, 0, len(p.opts.URLs))
	for _, url := range p.opts.URLs {
		page, err := p.load(ctx, url, now)
		if err != nil {
			p.fail(log, "page", err)
			return res, err
		}
		pages = append(pages, page)
	}
	primary := pages[0]

	decision, err := p.detect(ctx, primary.Future)
	if err != nil {
		p.fail(log, "detect", err)
		return res, err
	}
	res.Decision = decision

	if !decision.Accepted {
		log.WithFields(logger.Fields{"reason": string(decision.Reason)}).Info("snapshot unchanged; skipping write")
		logger.IncrementSnapshotRejected()
		p.opts.Metrics.Snapshot(string(decision.Reason))
		p.opts.Metrics.ObserveCycle(time.Since(start))
		log.LogMetric("pipeline", "snapshots_rejected", 1, "counter", logger.Fields{"reason": string(decision.Reason)})
		return res, nil
	}

	snap := processor.Assemble(primary, pages[1:]...)
	res.Snapshot = snap

	if err := p.sink.Write(ctx, res.RunID, snap); err != nil {
		if rerr := p.detector.Restore(context.WithoutCancel(ctx), decision); rerr != nil {
			err = errors.Join(err, rerr)
		}
		err = fmt.Errorf("write snapshot: %w", err)
		p.fail(log, "sink", err)
		return res, err
	}
	res.Written = true

	options := len(snap.Options())
	logger.IncrementSnapshotAccepted()
	p.opts.Metrics.Snapshot(string(decision.Reason))
	p.opts.Metrics.Rows(options)
	p.opts.Metrics.ObserveCycle(time.Since(start))
	log.LogMetric("pipeline", "snapshots_accepted", 1, "counter", logger.Fields{"reason": string(decision.Reason)})
	log.LogMetric("pipeline", "option_rows", options, "counter", nil)
	logger.LogPerformanceEntry(log, "pipeline", "run_once", time.Since(start), logger.Fields{
		"created_at": snap.CreatedAt().Format(time.RFC3339),
		"maturities": snap.Maturities(),
		"options":    options,
	})
	return res, nil
}

func (p *Pipeline) load(ctx context.Context, url string, now time.Time) (*processor.Page, error) {
	body, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	logger.IncrementPageRead(len(body))
	p.opts.Metrics.Fetched(len(body))
	p.log.LogMetric("pipeline", "fetch_bytes", len(body), "counter", logger.Fields{"url": url})

	doc, err := reader.Extract(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}
	page, err := processor.Parse(doc, now)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return page, nil
}

// detect retries the whole read-compare-swap when another writer won the
// race.
func (p *Pipeline) detect(ctx context.Context, future models.FutureQuote) (change.Decision, error) {
	var lastErr error
	for attempt := 0; attempt <= p.opts.ConflictRetries; attempt++ {
		decision, err := p.detector.Detect(ctx, future)
		if err == nil {
			return decision, nil
		}
		if !errors.Is(err, change.ErrReferenceConflict) {
			return change.Decision{}, err
		}
		lastErr = err
		p.opts.Metrics.Conflict()
		p.log.WithComponent("pipeline").WithFields(logger.Fields{"attempt": attempt + 1}).Warn("change reference conflict")
	}
	return change.Decision{}, lastErr
}

func (p *Pipeline) fail(log *logger.Entry, stage string, err error) {
	logger.IncrementCycleFailure()
	p.opts.Metrics.Failure(stage)
	log.WithError(err).WithFields(logger.Fields{"stage": stage}).Error("ingestion cycle failed")
	log.LogMetric("pipeline", "cycle_failures", 1, "counter", nil)
}

// Run executes a cycle at every interval boundary until ctx is done. Cycle
// errors are logged and do not stop the loop.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	log := p.log.WithComponent("pipeline")
	log.WithFields(logger.Fields{"interval": interval.String()}).Info("starting scheduled ingestion")

	for {
		now := time.Now()
		next := now.Truncate(interval).Add(interval)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("scheduled ingestion stopped")
			return ctx.Err()
		case <-timer.C:
			p.RunOnce(ctx)
		}
	}
}
