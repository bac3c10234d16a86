package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skillgrid/assessor/internal/model"
	"github.com/skillgrid/assessor/internal/platform/cache"
)

// CachedSource serves Source lookups from Redis, falling back to the wrapped
// Source on a miss or on any cache error.
type CachedSource struct {
	next  Source
	cache *cache.Cache
	log   *slog.Logger
}

// NewCachedSource wraps next with a read-through cache.
func NewCachedSource(next Source, c *cache.Cache, log *slog.Logger) *CachedSource {
	if log == nil {
		log = slog.Default()
	}
	return &CachedSource{next: next, cache: c, log: log}
}

func (s *CachedSource) Competencies(ctx context.Context, specializationID int64) ([]model.Competency, error) {
	return readThrough(ctx, s, fmt.Sprintf("competencies:%d", specializationID), func() ([]model.Competency, error) {
		return s.next.Competencies(ctx, specializationID)
	})
}

func (s *CachedSource) TopicIDs(ctx context.Context, competencyID int64) ([]int64, error) {
	return readThrough(ctx, s, fmt.Sprintf("topics:%d", competencyID), func() ([]int64, error) {
		return s.next.TopicIDs(ctx, competencyID)
	})
}

func (s *CachedSource) QuestionIDs(ctx context.Context, topicID int64, level model.Level) ([]int64, error) {
	return readThrough(ctx, s, fmt.Sprintf("questions:%d:%s", topicID, level), func() ([]int64, error) {
		return s.next.QuestionIDs(ctx, topicID, level)
	})
}

// Invalidate drops every cached catalog entry. Importers call it after
// changing weights or questions.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	n, err := s.cache.Flush(ctx)
	if err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	s.log.Debug("catalog cache invalidated", "keys", n)
	return nil
}

func readThrough[T any](ctx context.Context, s *CachedSource, key string, load func() (T, error)) (T, error) {
	var cached T
	ok, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.log.Warn("catalog cache read failed", "key", key, "error", err)
	} else if ok {
		return cached, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if err := s.cache.SetJSON(ctx, key, v); err != nil {
		s.log.Warn("catalog cache write failed", "key", key, "error", err)
	}
	return v, nil
}
