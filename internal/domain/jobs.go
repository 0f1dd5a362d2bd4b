package domain

import (
	"context"
	"time"
)

// ThumbnailJobCause описывает причину пересчёта миниатюры коллекции.
type ThumbnailJobCause string

const (
	// ThumbnailCausePostAdded — в коллекцию добавлен пост.
	ThumbnailCausePostAdded ThumbnailJobCause = "post_added"
	// ThumbnailCausePostDeleted — из коллекции удалён пост.
	ThumbnailCausePostDeleted ThumbnailJobCause = "post_deleted"
	// ThumbnailCausePostMoved — пост перемещён между коллекциями.
	ThumbnailCausePostMoved ThumbnailJobCause = "post_moved"
	// ThumbnailCauseReconcile — плановая сверка денормализованных полей.
	ThumbnailCauseReconcile ThumbnailJobCause = "reconcile"
)

// ThumbnailJob содержит информацию о задаче пересчёта миниатюры.
type ThumbnailJob struct {
	ID           string            `json:"job_id,omitempty"`
	OwnerID      string            `json:"owner_id"`
	CollectionID string            `json:"collection_id"`
	Cause        ThumbnailJobCause `json:"cause"`
	RequestedAt  time.Time         `json:"requested_at"`
}

// ThumbnailAckFunc подтверждает успешную обработку или возвращает задачу в очередь.
type ThumbnailAckFunc func(success bool) error

// ThumbnailQueue описывает очередь задач пересчёта миниатюр.
type ThumbnailQueue interface {
	Enqueue(ctx context.Context, job ThumbnailJob) error
	Receive(ctx context.Context) (ThumbnailJob, ThumbnailAckFunc, error)
}
