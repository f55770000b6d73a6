package queue

import (
	"context"
	"errors"
	"log/slog"

	"gmq/internal/platform/kv"
	"gmq/pkg/platform/sentinel"
)

// Recover pushes jobs stranded on the processing lists of consumers that
// are no longer alive (no heartbeat) back onto their queue.
// This is what makes delivery at-least-once across crashes: handlers must
// tolerate seeing a job twice.
func Recover(ctx context.Context, store kv.Store, queues []string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	total := 0
	for _, q := range queues {
		var stranded []string
		err := store.Scan(ctx, ProcessingKey(q, "*"), func(key string) error {
			consumer, ok := consumerFromProcessingKey(q, key)
			if !ok {
				return nil
			}
			_, err := store.Get(ctx, heartbeatKey(consumer))
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				stranded = append(stranded, key)
			case err != nil:
				return err
			}
			return nil
		})
		if err != nil {
			return total, err
		}

		for _, key := range stranded {
			for {
				_, err := store.LMove(ctx, key, Key(q))
				if errors.Is(err, sentinel.ErrNotFound) {
					break
				}
				if err != nil {
					return total, err
				}
				total++
				jobsRecovered.Inc()
			}
			logger.InfoContext(ctx, "recovered stranded jobs", "queue", q, "processing_list", key)
		}
	}
	return total, nil
}
