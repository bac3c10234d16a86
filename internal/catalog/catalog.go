// Package catalog provides the competency, topic and question data the test
// generator reads, and persistence for generated test sessions.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/skillgrid/assessor/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const dbTimeout = 5 * time.Second

// Source is the read side used by test generation.
type Source interface {
	// Competencies returns a specialization's competencies ordered by weight
	// descending, then ID.
	Competencies(ctx context.Context, specializationID int64) ([]model.Competency, error)
	// TopicIDs returns the topic pool of a competency.
	TopicIDs(ctx context.Context, competencyID int64) ([]int64, error)
	// QuestionIDs returns the candidate questions for a (topic, level) pair.
	QuestionIDs(ctx context.Context, topicID int64, level model.Level) ([]int64, error)
}

// SessionStore persists generated tests.
type SessionStore interface {
	// SaveSession stores the session and all its assignments atomically and
	// returns the session with its ID, reference and creation time set.
	SaveSession(ctx context.Context, session model.TestSession, assignments []model.Assignment) (model.TestSession, error)
	GetSession(ctx context.Context, id int64) (model.TestSession, error)
	// Assignments returns a session's assignments ordered by position.
	Assignments(ctx context.Context, sessionID int64) ([]model.Assignment, error)
}

// CompetencyRecord is a competency together with its specialization name.
type CompetencyRecord struct {
	model.Competency
	Specialization string
}

// Writer is the write side used by the question-bank and weight importers.
type Writer interface {
	EnsureSpecialization(ctx context.Context, profile, name, fileName string) (int64, error)
	SpecializationByName(ctx context.Context, name string) (model.Specialization, error)
	// EnsureCompetency returns the competency's ID, creating it with the
	// given weight if needed. created reports whether a row was inserted.
	EnsureCompetency(ctx context.Context, specializationID int64, name string, weight float64) (id int64, created bool, err error)
	EnsureTopic(ctx context.Context, competencyID int64, name string) (int64, error)
	AddQuestion(ctx context.Context, q model.Question) (int64, error)
	// ListCompetencies returns competencies ordered by specialization then
	// name; an empty specialization lists all.
	ListCompetencies(ctx context.Context, specialization string) ([]CompetencyRecord, error)
	SetWeight(ctx context.Context, competencyID int64, weight float64) error
}

// Store is the full catalog.
type Store interface {
	Source
	SessionStore
	Writer
}
