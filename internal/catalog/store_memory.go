package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillgrid/assessor/internal/model"
)

type questionKey struct {
	topicID int64
	level   model.Level
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu sync.RWMutex

	nextID          int64
	specializations map[int64]model.Specialization
	competencies    map[int64]model.Competency
	topics          map[int64]model.Topic
	questions       map[int64]model.Question
	byTopicLevel    map[questionKey][]int64
	sessions        map[int64]model.TestSession
	assignments     map[int64][]model.Assignment
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		specializations: make(map[int64]model.Specialization),
		competencies:    make(map[int64]model.Competency),
		topics:          make(map[int64]model.Topic),
		questions:       make(map[int64]model.Question),
		byTopicLevel:    make(map[questionKey][]int64),
		sessions:        make(map[int64]model.TestSession),
		assignments:     make(map[int64][]model.Assignment),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) Competencies(_ context.Context, specializationID int64) ([]model.Competency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Competency
	for _, c := range s.competencies {
		if c.SpecializationID == specializationID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) TopicIDs(_ context.Context, competencyID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []int64
	for _, t := range s.topics {
		if t.CompetencyID == competencyID {
			out = append(out, t.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryStore) QuestionIDs(_ context.Context, topicID int64, level model.Level) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int64(nil), s.byTopicLevel[questionKey{topicID, level}]...), nil
}

func (s *MemoryStore) SaveSession(_ context.Context, session model.TestSession, assignments []model.Assignment) (model.TestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.specializations[session.SpecializationID]; !ok {
		return model.TestSession{}, fmt.Errorf("specialization %d: %w", session.SpecializationID, ErrNotFound)
	}
	for _, a := range assignments {
		if _, ok := s.questions[a.QuestionID]; !ok {
			return model.TestSession{}, fmt.Errorf("question %d: %w", a.QuestionID, ErrNotFound)
		}
	}

	session.ID = s.id()
	if session.Reference == "" {
		session.Reference = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	s.sessions[session.ID] = session
	s.assignments[session.ID] = append([]model.Assignment(nil), assignments...)
	return session, nil
}

func (s *MemoryStore) GetSession(_ context.Context, id int64) (model.TestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return model.TestSession{}, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return session, nil
}

func (s *MemoryStore) Assignments(_ context.Context, sessionID int64) ([]model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("session %d: %w", sessionID, ErrNotFound)
	}
	out := append([]model.Assignment(nil), s.assignments[sessionID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryStore) EnsureSpecialization(_ context.Context, profile, name, fileName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sp := range s.specializations {
		if sp.Profile == profile && sp.Name == name {
			return sp.ID, nil
		}
	}
	sp := model.Specialization{ID: s.id(), Profile: profile, Name: name, FileName: fileName}
	s.specializations[sp.ID] = sp
	return sp.ID, nil
}

func (s *MemoryStore) SpecializationByName(_ context.Context, name string) (model.Specialization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []model.Specialization
	for _, sp := range s.specializations {
		if sp.Name == name {
			found = append(found, sp)
		}
	}
	if len(found) == 0 {
		return model.Specialization{}, fmt.Errorf("specialization %q: %w", name, ErrNotFound)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	return found[0], nil
}

func (s *MemoryStore) EnsureCompetency(_ context.Context, specializationID int64, name string, weight float64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.specializations[specializationID]; !ok {
		return 0, false, fmt.Errorf("specialization %d: %w", specializationID, ErrNotFound)
	}
	for _, c := range s.competencies {
		if c.SpecializationID == specializationID && c.Name == name {
			return c.ID, false, nil
		}
	}
	c := model.Competency{ID: s.id(), SpecializationID: specializationID, Name: name, Weight: weight}
	s.competencies[c.ID] = c
	return c.ID, true, nil
}

func (s *MemoryStore) EnsureTopic(_ context.Context, competencyID int64, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.competencies[competencyID]; !ok {
		return 0, fmt.Errorf("competency %d: %w", competencyID, ErrNotFound)
	}
	for _, t := range s.topics {
		if t.CompetencyID == competencyID && t.Name == name {
			return t.ID, nil
		}
	}
	t := model.Topic{ID: s.id(), CompetencyID: competencyID, Name: name}
	s.topics[t.ID] = t
	return t.ID, nil
}

func (s *MemoryStore) AddQuestion(_ context.Context, q model.Question) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.topics[q.TopicID]; !ok {
		return 0, fmt.Errorf("topic %d: %w", q.TopicID, ErrNotFound)
	}
	q.ID = s.id()
	s.questions[q.ID] = q
	key := questionKey{q.TopicID, q.Level}
	s.byTopicLevel[key] = append(s.byTopicLevel[key], q.ID)
	return q.ID, nil
}

func (s *MemoryStore) ListCompetencies(_ context.Context, specialization string) ([]CompetencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []CompetencyRecord
	for _, c := range s.competencies {
		sp := s.specializations[c.SpecializationID]
		if specialization != "" && sp.Name != specialization {
			continue
		}
		out = append(out, CompetencyRecord{Competency: c, Specialization: sp.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Specialization != out[j].Specialization {
			return out[i].Specialization < out[j].Specialization
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemoryStore) SetWeight(_ context.Context, competencyID int64, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.competencies[competencyID]
	if !ok {
		return fmt.Errorf("competency %d: %w", competencyID, ErrNotFound)
	}
	c.Weight = weight
	s.competencies[competencyID] = c
	return nil
}
