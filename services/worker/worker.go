package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"sjsage522/pricewatch/internal/ledger"
	"sjsage522/pricewatch/internal/scanner"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/services/publisher"
)

// PassRunner runs a single scan pass
type PassRunner interface {
	RunPass(ctx context.Context, opts scanner.Options) (*scanner.Result, error)
}

// Worker drives scan passes on an interval and publishes what they find.
// Passes never overlap: the next one starts interval after the previous ended.
type Worker struct {
	ctx       context.Context
	runner    PassRunner
	ledger    *ledger.Ledger
	store     ledger.Store
	publisher publisher.Publisher
	opts      scanner.Options
	interval  time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewWorker creates a new worker
func NewWorker(
	ctx context.Context,
	runner PassRunner,
	led *ledger.Ledger,
	store ledger.Store,
	pub publisher.Publisher,
	opts scanner.Options,
	interval time.Duration,
) *Worker {
	return &Worker{
		ctx:       ctx,
		runner:    runner,
		ledger:    led,
		store:     store,
		publisher: pub,
		opts:      opts,
		interval:  interval,
		log:       logger.ForWorker(),
		now:       time.Now,
	}
}

// Start loads the ledger and runs passes until the context is cancelled.
// The ledger is flushed after every pass and once more on the way out.
func (w *Worker) Start() error {
	if err := w.ledger.LoadFrom(w.ctx, w.store); err != nil {
		return err
	}
	w.log.Info().Int("seen", w.ledger.Len()).Msg("ledger loaded")

	defer w.flush(context.Background())

	for {
		if _, err := w.RunOnce(); errors.Is(err, context.Canceled) {
			return nil
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-w.ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce runs one pass, publishes its matches and summary, trims the
// streams and flushes the ledger.
func (w *Worker) RunOnce() (*scanner.Result, error) {
	result, err := w.runner.RunPass(w.ctx, w.opts)
	if result == nil {
		result = &scanner.Result{}
	}

	now := w.now()
	for _, product := range result.Matches {
		w.publish(publisher.KeyProduct, newProductMessage(product, now))
	}
	if len(result.Matches) > 0 || len(result.Errors) > 0 || (err != nil && !errors.Is(err, context.Canceled)) {
		w.publish(publisher.KeySummary, newSummaryMessage(result, err, now))
	}

	if trimErr := w.publisher.TrimStreams(); trimErr != nil {
		w.log.Error().Err(trimErr).Msg("failed to trim streams")
	}
	w.flush(w.ctx)

	event := w.log.Info()
	if err != nil {
		event = w.log.Error().Err(err)
	}
	event.
		Int("products_checked", result.ProductsChecked).
		Int("matches", len(result.Matches)).
		Int("errors", len(result.Errors)).
		Int64("duration_ms", result.DurationMs()).
		Msg("pass finished")

	return result, err
}

// publish failures are logged and never retried
func (w *Worker) publish(key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		w.log.Error().Err(err).Str("key", key).Msg("failed to encode message")
		return
	}
	if err := w.publisher.Publish(key, data); err != nil {
		w.log.Error().Err(err).Str("key", key).Msg("failed to publish message")
	}
}

func (w *Worker) flush(ctx context.Context) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := w.ledger.FlushTo(ctx, w.store); err != nil {
		w.log.Error().Err(err).Msg("failed to flush ledger")
	}
}
