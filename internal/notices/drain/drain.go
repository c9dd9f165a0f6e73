// Package drain replays deferred notice batches.
package drain

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openclay/herald/internal/notices"
	"github.com/openclay/herald/internal/notices/render"
	"github.com/openclay/herald/internal/notices/storage"
)

const defaultBatchLimit = 50

// Dispatcher dispatches one decoded notice. *notices.Service satisfies it.
type Dispatcher interface {
	Send(ctx context.Context, input notices.SendInput) (*notices.DeliveryReport, error)
}

// Worker drains the deferred queue in batch order.
type Worker struct {
	store      storage.QueueStore
	dispatcher Dispatcher
	log        zerolog.Logger
	batchLimit int
}

// Option adjusts worker behavior.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Worker) { w.log = log }
}

// WithBatchLimit caps how many batches one pass loads at a time.
func WithBatchLimit(limit int) Option {
	return func(w *Worker) {
		if limit > 0 {
			w.batchLimit = limit
		}
	}
}

// New builds a drain worker.
func New(store storage.QueueStore, dispatcher Dispatcher, opts ...Option) (*Worker, error) {
	if store == nil {
		return nil, fmt.Errorf("queue store is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	worker := &Worker{
		store:      store,
		dispatcher: dispatcher,
		log:        zerolog.Nop(),
		batchLimit: defaultBatchLimit,
	}
	for _, opt := range opts {
		opt(worker)
	}
	return worker, nil
}

// Run drains the queue until it is empty or the context ends. Undecodable
// batches are dropped after logging so one poison payload cannot wedge the
// queue. It returns the number of batches processed.
func (w *Worker) Run(ctx context.Context) (int, error) {
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		batches, err := w.store.ListQueueBatches(ctx, w.batchLimit)
		if err != nil {
			return processed, fmt.Errorf("list queue batches: %w", err)
		}
		if len(batches) == 0 {
			return processed, nil
		}

		for _, batch := range batches {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			if err := w.drainOne(ctx, batch); err != nil {
				return processed, err
			}
			processed++
		}
	}
}

func (w *Worker) drainOne(ctx context.Context, batch storage.QueueBatchRecord) error {
	inputs, err := notices.DecodeBatch(batch.Payload)
	if err != nil {
		w.log.Error().Err(err).Str("batch_id", batch.ID).Msg("dropping undecodable notice batch")
		return w.store.DeleteQueueBatch(ctx, batch.ID)
	}

	for _, input := range inputs {
		report, err := w.dispatcher.Send(ctx, input)
		if err != nil {
			// A notice that can never dispatch (its type or template is
			// gone) must not pin the batch at the head of the queue.
			if permanentDispatchError(err) {
				w.log.Error().Err(err).
					Str("batch_id", batch.ID).
					Str("label", input.Label).
					Msg("dropping undispatchable queued notice")
				continue
			}
			return fmt.Errorf("dispatch queued notice: %w", err)
		}
		if reportErr := report.Err(); reportErr != nil {
			w.log.Warn().Err(reportErr).
				Str("batch_id", batch.ID).
				Str("label", input.Label).
				Msg("queued notice delivery failures")
		}
	}

	if err := w.store.DeleteQueueBatch(ctx, batch.ID); err != nil {
		return fmt.Errorf("delete drained batch: %w", err)
	}
	w.log.Debug().Str("batch_id", batch.ID).Int("notices", len(inputs)).Msg("notice batch drained")
	return nil
}

// permanentDispatchError reports whether a dispatch failure cannot succeed
// on retry, as opposed to a transient store or delivery problem.
func permanentDispatchError(err error) bool {
	return errors.Is(err, notices.ErrNoticeTypeNotFound) ||
		errors.Is(err, notices.ErrLabelRequired) ||
		errors.Is(err, notices.ErrRecipientsRequired) ||
		errors.Is(err, render.ErrTemplateNotFound)
}
