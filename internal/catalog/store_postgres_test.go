package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/skillgrid/assessor/internal/catalog"
	"github.com/skillgrid/assessor/internal/model"
	"github.com/skillgrid/assessor/internal/platform/database"
)

func newPostgresStore(t *testing.T) *catalog.PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("assessor"),
		postgres.WithUsername("assessor"),
		postgres.WithPassword("assessor"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(ctx, database.Options{URL: dsn, MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	v, err := database.Version(ctx, db.Pool)
	require.NoError(t, err)
	assert.Zero(t, v, "fresh database has no schema version")

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migration must be idempotent")

	v, err = database.Version(ctx, db.Pool)
	require.NoError(t, err)
	assert.Equal(t, database.SchemaVersion, v)

	store, err := catalog.NewPostgresStore(db.Pool)
	require.NoError(t, err)
	return store
}

func TestPostgresStore_CatalogAndSession(t *testing.T) {
	store := newPostgresStore(t)
	ctx := t.Context()

	specID, err := store.EnsureSpecialization(ctx, "backend", "Go developer", "go.json")
	require.NoError(t, err)
	again, err := store.EnsureSpecialization(ctx, "backend", "Go developer", "go.json")
	require.NoError(t, err)
	assert.Equal(t, specID, again)

	sp, err := store.SpecializationByName(ctx, "Go developer")
	require.NoError(t, err)
	assert.Equal(t, "go.json", sp.FileName)

	langID, created, err := store.EnsureCompetency(ctx, specID, "Language", 47)
	require.NoError(t, err)
	assert.True(t, created)
	toolID, _, err := store.EnsureCompetency(ctx, specID, "Tooling", 20)
	require.NoError(t, err)

	sameID, created, err := store.EnsureCompetency(ctx, specID, "Language", 1)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, langID, sameID)

	comps, err := store.Competencies(ctx, specID)
	require.NoError(t, err)
	require.Len(t, comps, 2)
	assert.Equal(t, langID, comps[0].ID)
	assert.InDelta(t, 47.0, comps[0].Weight, 1e-9)

	topicID, err := store.EnsureTopic(ctx, langID, "generics")
	require.NoError(t, err)
	topics, err := store.TopicIDs(ctx, langID)
	require.NoError(t, err)
	assert.Equal(t, []int64{topicID}, topics)

	var assignments []model.Assignment
	for i, l := range model.Levels {
		qid, err := store.AddQuestion(ctx, model.Question{
			TopicID:       topicID,
			Level:         l,
			Text:          "What does ~int mean in a constraint?",
			Options:       [4]string{"a", "b", "c", "d"},
			CorrectAnswer: 2,
		})
		require.NoError(t, err)
		ids, err := store.QuestionIDs(ctx, topicID, l)
		require.NoError(t, err)
		assert.Equal(t, []int64{qid}, ids)
		assignments = append(assignments, model.Assignment{
			CompetencyID: langID, TopicID: topicID, Level: l, QuestionID: qid, Position: i + 1,
		})
	}

	saved, err := store.SaveSession(ctx, model.TestSession{
		UserID: "u-42", SpecializationID: specID, Themes: 1, MaxScore: 3,
	}, assignments)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.NotEmpty(t, saved.Reference)

	got, err := store.GetSession(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Reference, got.Reference)
	assert.Equal(t, 3, got.MaxScore)

	stored, err := store.Assignments(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, assignments, stored)

	require.NoError(t, store.SetWeight(ctx, toolID, 33))
	list, err := store.ListCompetencies(ctx, "Go developer")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Tooling", list[1].Name)
	assert.InDelta(t, 33.0, list[1].Weight, 1e-9)

	assert.ErrorIs(t, store.SetWeight(ctx, 999999, 1), catalog.ErrNotFound)
	_, err = store.GetSession(ctx, 999999)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestPostgresStore_SaveSessionIsAtomic(t *testing.T) {
	store := newPostgresStore(t)
	ctx := t.Context()

	specID, err := store.EnsureSpecialization(ctx, "backend", "Go developer", "")
	require.NoError(t, err)

	// Unknown question IDs violate the foreign key during COPY.
	_, err = store.SaveSession(ctx, model.TestSession{UserID: "u", SpecializationID: specID, Themes: 1, MaxScore: 3},
		[]model.Assignment{{CompetencyID: 1, TopicID: 1, Level: model.LevelJunior, QuestionID: 1, Position: 1}})
	require.Error(t, err)

	_, err = store.GetSession(ctx, 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound, "session row must roll back with its assignments")
}
