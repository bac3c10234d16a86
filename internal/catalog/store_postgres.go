package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillgrid/assessor/internal/model"
)

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a catalog backed by pool. The schema must already
// be migrated.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Competencies(ctx context.Context, specializationID int64) ([]model.Competency, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, specialization_id, name, weight
		 FROM competencies
		 WHERE specialization_id = $1
		 ORDER BY weight DESC, id ASC`,
		specializationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query competencies: %w", err)
	}
	defer rows.Close()

	var out []model.Competency
	for rows.Next() {
		var c model.Competency
		if err := rows.Scan(&c.ID, &c.SpecializationID, &c.Name, &c.Weight); err != nil {
			return nil, fmt.Errorf("scan competency: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate competencies: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) TopicIDs(ctx context.Context, competencyID int64) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.ids(ctx, "topics",
		`SELECT id FROM topics WHERE competency_id = $1 ORDER BY id`,
		competencyID,
	)
}

func (s *PostgresStore) QuestionIDs(ctx context.Context, topicID int64, level model.Level) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.ids(ctx, "questions",
		`SELECT id FROM questions WHERE topic_id = $1 AND level = $2 ORDER BY id`,
		topicID, level.String(),
	)
}

func (s *PostgresStore) ids(ctx context.Context, what, query string, args ...any) ([]int64, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", what, err)
	}
	return ids, nil
}

func (s *PostgresStore) SaveSession(ctx context.Context, session model.TestSession, assignments []model.Assignment) (model.TestSession, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if session.Reference == "" {
		session.Reference = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO test_sessions (reference, user_id, specialization_id, themes, max_score, created_at)
			 VALUES ($1::uuid, $2, $3, $4, $5, $6)
			 RETURNING id`,
			session.Reference,
			session.UserID,
			session.SpecializationID,
			session.Themes,
			session.MaxScore,
			session.CreatedAt,
		).Scan(&session.ID)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"test_assignments"},
			[]string{"session_id", "position", "competency_id", "topic_id", "level", "question_id"},
			pgx.CopyFromSlice(len(assignments), func(i int) ([]any, error) {
				a := assignments[i]
				return []any{session.ID, a.Position, a.CompetencyID, a.TopicID, a.Level.String(), a.QuestionID}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy assignments: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.TestSession{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id int64) (model.TestSession, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var session model.TestSession
	err := s.pool.QueryRow(ctx,
		`SELECT id, reference::text, user_id, specialization_id, themes, max_score, created_at
		 FROM test_sessions
		 WHERE id = $1`,
		id,
	).Scan(
		&session.ID,
		&session.Reference,
		&session.UserID,
		&session.SpecializationID,
		&session.Themes,
		&session.MaxScore,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TestSession{}, fmt.Errorf("session %d: %w", id, ErrNotFound)
		}
		return model.TestSession{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) Assignments(ctx context.Context, sessionID int64) ([]model.Assignment, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT position, competency_id, topic_id, level, question_id
		 FROM test_assignments
		 WHERE session_id = $1
		 ORDER BY position ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var (
			a     model.Assignment
			level string
		)
		if err := rows.Scan(&a.Position, &a.CompetencyID, &a.TopicID, &level, &a.QuestionID); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		if a.Level, err = model.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("assignment %d: %w", a.Position, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) EnsureSpecialization(ctx context.Context, profile, name, fileName string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO specializations (profile, name, json_file_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (profile, name) DO UPDATE SET profile = EXCLUDED.profile
		 RETURNING id`,
		profile, name, nullIfEmpty(fileName),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure specialization: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) SpecializationByName(ctx context.Context, name string) (model.Specialization, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		sp       model.Specialization
		fileName *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, profile, name, json_file_name
		 FROM specializations
		 WHERE name = $1
		 ORDER BY id
		 LIMIT 1`,
		name,
	).Scan(&sp.ID, &sp.Profile, &sp.Name, &fileName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Specialization{}, fmt.Errorf("specialization %q: %w", name, ErrNotFound)
		}
		return model.Specialization{}, fmt.Errorf("get specialization: %w", err)
	}
	if fileName != nil {
		sp.FileName = *fileName
	}
	return sp, nil
}

func (s *PostgresStore) EnsureCompetency(ctx context.Context, specializationID int64, name string, weight float64) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		id       int64
		inserted bool
	)
	// xmax is zero only for rows written by this statement's INSERT branch.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO competencies (specialization_id, name, weight)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (specialization_id, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, (xmax = 0)`,
		specializationID, name, weight,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, fmt.Errorf("ensure competency: %w", err)
	}
	return id, inserted, nil
}

func (s *PostgresStore) EnsureTopic(ctx context.Context, competencyID int64, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO topics (competency_id, name)
		 VALUES ($1, $2)
		 ON CONFLICT (competency_id, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		competencyID, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure topic: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) AddQuestion(ctx context.Context, q model.Question) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO questions (topic_id, level, question_text, var_1, var_2, var_3, var_4, correct_answer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		q.TopicID, q.Level.String(), q.Text,
		q.Options[0], q.Options[1], q.Options[2], q.Options[3],
		q.CorrectAnswer,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add question: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListCompetencies(ctx context.Context, specialization string) ([]CompetencyRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.specialization_id, c.name, c.weight, s.name
		 FROM competencies c
		 JOIN specializations s ON s.id = c.specialization_id
		 WHERE $1 = '' OR s.name = $1
		 ORDER BY s.name, c.name`,
		specialization,
	)
	if err != nil {
		return nil, fmt.Errorf("list competencies: %w", err)
	}
	defer rows.Close()

	var out []CompetencyRecord
	for rows.Next() {
		var r CompetencyRecord
		if err := rows.Scan(&r.ID, &r.SpecializationID, &r.Name, &r.Weight, &r.Specialization); err != nil {
			return nil, fmt.Errorf("scan competency: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate competencies: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetWeight(ctx context.Context, competencyID int64, weight float64) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`UPDATE competencies SET weight = $2 WHERE id = $1`,
		competencyID, weight,
	)
	if err != nil {
		return fmt.Errorf("set weight: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("competency %d: %w", competencyID, ErrNotFound)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
