package journal

import (
	"context"
	"log/slog"
	"time"

	"kettlebridge/internal/bus"
	"kettlebridge/internal/connectors"
	"kettlebridge/internal/device"
)

// retention bounds how far back the journal keeps history. Old rows are
// pruned once per process start.
const retention = 90 * 24 * time.Hour

// StartSync records every state change published on the bus through the
// writer queue until ctx is cancelled.
func StartSync(ctx context.Context, logger *slog.Logger, b bus.MessageBus, queue *WriterQueue, repo *Repo) {
	changes := b.Subscribe(connectors.TopicStateChange)

	queue.Enqueue("journal_prune", func(ctx context.Context) error {
		n, err := repo.PruneOlderThan(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("pruned old journal entries", "count", n)
		}

		return nil
	})

	go func() {
		defer b.Unsubscribe(changes, connectors.TopicStateChange)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-changes:
				if !ok {
					return
				}
				change, ok := raw.(device.Change)
				if !ok {
					continue
				}
				at := time.Now()
				queue.Enqueue("journal_append", func(ctx context.Context) error {
					return repo.Append(ctx, at, change)
				})
			}
		}
	}()
}
