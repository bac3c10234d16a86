// Package model holds the domain types shared by the assessment packages.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Level is a question difficulty level.
type Level int

const (
	LevelJunior Level = iota + 1
	LevelMiddle
	LevelSenior
)

// Levels lists every level in presentation order. Each selected topic
// contributes exactly one question per entry.
var Levels = []Level{LevelJunior, LevelMiddle, LevelSenior}

// String returns the name used in question banks and storage.
func (l Level) String() string {
	switch l {
	case LevelJunior:
		return "junior"
	case LevelMiddle:
		return "middle"
	case LevelSenior:
		return "senior"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel converts a stored level name back to a Level.
// "entry", "intermediate" and "advanced" are accepted as aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "junior", "entry":
		return LevelJunior, nil
	case "middle", "intermediate":
		return LevelMiddle, nil
	case "senior", "advanced":
		return LevelSenior, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// Specialization groups the competencies a test is assembled from.
type Specialization struct {
	ID       int64  `json:"id"`
	Profile  string `json:"profile"`
	Name     string `json:"name"`
	FileName string `json:"file_name,omitempty"`
}

// Competency is a weighted skill category under a specialization.
// Weights are compared relative to their sum and need not be normalized.
type Competency struct {
	ID               int64   `json:"id"`
	SpecializationID int64   `json:"specialization_id"`
	Name             string  `json:"name"`
	Weight           float64 `json:"weight"`
}

// Topic is a knowledge area owned by one competency.
type Topic struct {
	ID           int64  `json:"id"`
	CompetencyID int64  `json:"competency_id"`
	Name         string `json:"name"`
}

// Question is a single multiple-choice item. Text and options are opaque
// to the generator and may be stored encrypted.
type Question struct {
	ID            int64     `json:"id"`
	TopicID       int64     `json:"topic_id"`
	Level         Level     `json:"level"`
	Text          string    `json:"text"`
	Options       [4]string `json:"options"`
	CorrectAnswer int       `json:"correct_answer"`
}

// Assignment places one question at one position of a generated test.
type Assignment struct {
	CompetencyID int64 `json:"competency_id"`
	TopicID      int64 `json:"topic_id"`
	Level        Level `json:"level"`
	QuestionID   int64 `json:"question_id"`
	Position     int   `json:"position"`
}

// TestSession is one generated test instance.
type TestSession struct {
	ID               int64     `json:"id"`
	Reference        string    `json:"reference"`
	UserID           string    `json:"user_id"`
	SpecializationID int64     `json:"specialization_id"`
	Themes           int       `json:"themes"`
	MaxScore         int       `json:"max_score"`
	CreatedAt        time.Time `json:"created_at"`
}
