// Package sampling draws topics and questions for one competency's quota.
package sampling

import (
	"context"
	"errors"
	"fmt"

	"github.com/skillgrid/assessor/internal/model"
	"github.com/skillgrid/assessor/internal/random"
)

// QuestionSource lists the candidate questions for a (topic, level) pair.
type QuestionSource interface {
	QuestionIDs(ctx context.Context, topicID int64, level model.Level) ([]int64, error)
}

// Sampler draws topics without replacement and one question per level.
// It shares its random source across calls and is not safe for concurrent use.
type Sampler struct {
	questions QuestionSource
	src       random.Source
}

// New creates a Sampler.
func New(questions QuestionSource, src random.Source) *Sampler {
	return &Sampler{questions: questions, src: src}
}

// SelectTopics draws quota distinct topics uniformly from available, in draw
// order. Duplicate IDs in available count once. A pool smaller than quota is
// reported as a *TopicShortfallError, never truncated.
func (s *Sampler) SelectTopics(competencyID int64, quota int, available []int64) ([]int64, error) {
	if quota < 0 {
		return nil, fmt.Errorf("competency %d: negative quota %d", competencyID, quota)
	}

	pool := distinct(available)
	if quota > len(pool) {
		return nil, &TopicShortfallError{
			CompetencyID: competencyID,
			Requested:    quota,
			Available:    len(pool),
		}
	}

	idx, err := random.Sample(s.src, len(pool), quota)
	if err != nil {
		return nil, fmt.Errorf("competency %d: %w", competencyID, err)
	}

	topics := make([]int64, len(idx))
	for i, j := range idx {
		topics[i] = pool[j]
	}
	return topics, nil
}

// PickQuestion chooses one question for the topic and level uniformly among
// the candidates. Lookup errors are returned unchanged.
func (s *Sampler) PickQuestion(ctx context.Context, topicID int64, level model.Level) (int64, error) {
	ids, err := s.questions.QuestionIDs(ctx, topicID, level)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, &MissingQuestionsError{TopicID: topicID, Level: level}
	}
	return ids[s.src.Intn(len(ids))], nil
}

// Draw selects quota topics for a competency and one question per level for
// each, grouped by topic in selection order and by level in model.Levels
// order. Positions are left at zero for the caller to number. On any error
// nothing is returned.
func (s *Sampler) Draw(ctx context.Context, competencyID int64, quota int, available []int64) ([]model.Assignment, error) {
	topics, err := s.SelectTopics(competencyID, quota, available)
	if err != nil {
		return nil, err
	}

	out := make([]model.Assignment, 0, len(topics)*len(model.Levels))
	for _, topicID := range topics {
		for _, level := range model.Levels {
			qid, err := s.PickQuestion(ctx, topicID, level)
			if err != nil {
				var missing *MissingQuestionsError
				if errors.As(err, &missing) {
					missing.CompetencyID = competencyID
					return nil, missing
				}
				return nil, fmt.Errorf("pick %s question for topic %d: %w", level, topicID, err)
			}
			out = append(out, model.Assignment{
				CompetencyID: competencyID,
				TopicID:      topicID,
				Level:        level,
				QuestionID:   qid,
			})
		}
	}
	return out, nil
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
