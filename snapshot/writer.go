package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kasuganosora/questtoken/model"
	"go.uber.org/zap"
)

// WriterConfig tunes the Writer.
type WriterConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
}

// op is one queued write. A non-nil reply marks a delete of del.
type op struct {
	row   *model.QuestInstance
	del   string
	reply chan error
}

// Writer accepts rows without blocking and writes them to the Repository in
// batches from a background goroutine. Within a batch the last row for an
// instance id wins. Deletes travel through the same goroutine, so a row
// queued before a delete is never written after it.
//
// A failed batch stays pending and is retried on the next tick.
type Writer struct {
	repo      *Repository
	ch        chan op
	stopCh    chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	batchSize int
	interval  time.Duration
	logger    *zap.Logger

	// err is the outcome of the final flush; read only after done closes.
	err error
}

// NewWriter creates a Writer and starts its background worker.
func NewWriter(repo *Repository, cfg WriterConfig, logger *zap.Logger) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	w := &Writer{
		repo:      repo,
		ch:        make(chan op, cfg.QueueSize),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		logger:    logger,
	}
	go w.worker()
	return w
}

// Enqueue queues row for writing. It returns false when the queue is full or
// the writer has stopped; the caller keeps the row dirty and retries later.
func (w *Writer) Enqueue(row *model.QuestInstance) bool {
	select {
	case <-w.stopCh:
		return false
	default:
	}
	select {
	case w.ch <- op{row: row}:
		return true
	default:
		w.logger.Warn("snapshot queue full, deferring instance",
			zap.String("instance_id", row.InstanceID))
		return false
	}
}

// Delete removes the stored row of instanceID after every row queued before
// it, and drops any pending write of it. It blocks until the delete is done.
// Once the writer has stopped the row is deleted directly.
func (w *Writer) Delete(ctx context.Context, instanceID string) error {
	reply := make(chan error, 1)
	select {
	case <-w.stopCh:
		return w.deleteAfterStop(ctx, instanceID)
	case w.ch <- op{del: instanceID, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-w.done:
		// The worker may have exited before it saw the delete.
		return w.repo.Delete(ctx, instanceID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) deleteAfterStop(ctx context.Context, instanceID string) error {
	select {
	case <-w.done:
		return w.repo.Delete(ctx, instanceID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains the queue, writes what remains and stops the worker. It blocks
// until the final write finishes or ctx ends, and reports a failed final write.
func (w *Writer) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	select {
	case <-w.done:
		if w.err != nil {
			return fmt.Errorf("snapshot: final flush: %w", w.err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) worker() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	batch := make(map[string]*model.QuestInstance, w.batchSize)
	failing := false

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		rows := make([]*model.QuestInstance, 0, len(batch))
		for _, r := range batch {
			rows = append(rows, r)
		}
		if err := w.repo.Save(context.Background(), rows); err != nil {
			w.logger.Error("snapshot batch write failed, keeping rows for retry",
				zap.Int("rows", len(rows)), zap.Error(err))
			failing = true
			return err
		}
		w.logger.Debug("snapshot batch written", zap.Int("rows", len(rows)))
		failing = false
		batch = make(map[string]*model.QuestInstance, w.batchSize)
		return nil
	}

	apply := func(o op) {
		if o.reply == nil {
			batch[o.row.InstanceID] = o.row
			return
		}
		delete(batch, o.del)
		err := w.repo.Delete(context.Background(), o.del)
		if err != nil {
			w.logger.Error("snapshot delete failed", zap.String("instance_id", o.del), zap.Error(err))
		}
		o.reply <- err
	}

	for {
		select {
		case o := <-w.ch:
			apply(o)
			// While the store is failing only the ticker retries.
			if !failing && len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.stopCh:
			for {
				select {
				case o := <-w.ch:
					apply(o)
				default:
					w.err = flush()
					return
				}
			}
		}
	}
}
