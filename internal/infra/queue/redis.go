package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"collecti-backend/internal/domain"
)

// RedisThumbnailQueue реализует очередь задач пересчёта миниатюр на базе Redis lists.
type RedisThumbnailQueue struct {
	client *redis.Client
	key    string
}

var _ domain.ThumbnailQueue = (*RedisThumbnailQueue)(nil)

// NewRedisThumbnailQueue создаёт очередь по указанному ключу.
func NewRedisThumbnailQueue(client *redis.Client, key string) *RedisThumbnailQueue {
	return &RedisThumbnailQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisThumbnailQueue) Enqueue(ctx context.Context, job domain.ThumbnailJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди. Ack с признаком неуспеха
// возвращает задачу в хвост очереди для повторной обработки.
func (q *RedisThumbnailQueue) Receive(ctx context.Context) (domain.ThumbnailJob, domain.ThumbnailAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ThumbnailJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ThumbnailJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ThumbnailJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.ThumbnailJob{}, nil, errors.New("redis queue: unexpected response")
		}
		raw := res[1]
		var job domain.ThumbnailJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return domain.ThumbnailJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.LPush(context.Background(), q.key, raw).Err()
		}
		return job, ack, nil
	}
}
