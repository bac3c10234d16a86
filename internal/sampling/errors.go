package sampling

import (
	"errors"
	"fmt"

	"github.com/skillgrid/assessor/internal/model"
)

// ErrCapacity is the root of every shortfall the sampler reports.
var ErrCapacity = errors.New("insufficient capacity")

// TopicShortfallError reports a competency whose topic pool is smaller than its quota.
type TopicShortfallError struct {
	CompetencyID int64
	Requested    int
	Available    int
}

func (e *TopicShortfallError) Error() string {
	return fmt.Sprintf("competency %d: %d topics requested, %d available", e.CompetencyID, e.Requested, e.Available)
}

func (e *TopicShortfallError) Unwrap() error { return ErrCapacity }

// MissingQuestionsError reports a (topic, level) pair with no candidate questions.
type MissingQuestionsError struct {
	CompetencyID int64
	TopicID      int64
	Level        model.Level
}

func (e *MissingQuestionsError) Error() string {
	return fmt.Sprintf("competency %d: no %s question for topic %d", e.CompetencyID, e.Level, e.TopicID)
}

func (e *MissingQuestionsError) Unwrap() error { return ErrCapacity }
