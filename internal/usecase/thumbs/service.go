package thumbs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"collecti-backend/internal/domain"
	"collecti-backend/internal/infra/metrics"
)

// Service пересчитывает денормализованную миниатюру коллекции по задачам
// из очереди. Источник правды — самый свежий пост коллекции.
type Service struct {
	collections domain.CollectionRepo
	posts       domain.PostRepo
	resolver    domain.ThumbnailResolver
	log         zerolog.Logger
}

// NewService создаёт сервис пересчёта миниатюр.
func NewService(collections domain.CollectionRepo, posts domain.PostRepo, resolver domain.ThumbnailResolver, logger zerolog.Logger) *Service {
	return &Service{
		collections: collections,
		posts:       posts,
		resolver:    resolver,
		log:         logger,
	}
}

// Refresh пересчитывает миниатюру коллекции из задачи. Пустая коллекция
// получает пустую миниатюру; исчезнувшая коллекция — не ошибка.
func (s *Service) Refresh(ctx context.Context, job domain.ThumbnailJob) error {
	latest, err := s.posts.LatestInCollection(ctx, job.OwnerID, job.CollectionID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.store(ctx, job, "")
	}
	if err != nil {
		return fmt.Errorf("свежий пост коллекции: %w", err)
	}

	thumbnail, err := s.resolver.Resolve(ctx, latest)
	if err != nil {
		return fmt.Errorf("подбор миниатюры: %w", err)
	}
	return s.store(ctx, job, thumbnail)
}

func (s *Service) store(ctx context.Context, job domain.ThumbnailJob, thumbnail string) error {
	err := s.collections.UpdateThumbnail(ctx, job.OwnerID, job.CollectionID, thumbnail)
	if errors.Is(err, domain.ErrNotFound) {
		// Коллекцию успели удалить, задача устарела.
		s.log.Debug().Str("collection", job.CollectionID).Msg("миниатюры: коллекция уже удалена")
		return nil
	}
	if err != nil {
		return fmt.Errorf("сохранение миниатюры: %w", err)
	}
	return nil
}

// Run читает задачи из очереди до отмены контекста. Неудачные задачи
// возвращаются в очередь через nack.
func (s *Service) Run(ctx context.Context, queue domain.ThumbnailQueue) error {
	s.log.Info().Msg("миниатюры: воркер запущен")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("миниатюры: воркер остановлен")
			return nil
		default:
		}

		job, ack, err := queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			s.log.Error().Err(err).Msg("миниатюры: не удалось получить задачу")
			time.Sleep(time.Second)
			continue
		}

		start := time.Now()
		refreshErr := s.Refresh(ctx, job)
		if refreshErr != nil {
			metrics.IncThumbnailJob("error")
			s.log.Error().Err(refreshErr).
				Str("collection", job.CollectionID).
				Str("cause", string(job.Cause)).
				Msg("миниатюры: задача не обработана")
		} else {
			metrics.IncThumbnailJob("success")
			s.log.Info().
				Str("collection", job.CollectionID).
				Str("cause", string(job.Cause)).
				Dur("elapsed", time.Since(start)).
				Msg("миниатюры: задача обработана")
		}

		if ack != nil {
			if err := ack(refreshErr == nil); err != nil {
				s.log.Error().Err(err).Msg("миниатюры: не удалось подтвердить задачу")
			}
		}
	}
}
