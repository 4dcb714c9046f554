package lesson_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnplatform/internal/api"
	"learnplatform/internal/devserver"
	"learnplatform/internal/domain"
	"learnplatform/internal/lesson"
	"learnplatform/internal/points"
	"learnplatform/internal/progress"
	"learnplatform/internal/session"
)

func newCache(t *testing.T) (*lesson.Cache, *progress.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := devserver.NewServer(devserver.DemoContent(), devserver.NewMemoryRepository(), devserver.NewTokenManager("test-secret"))
	ts := httptest.NewServer(devserver.NewRouter(srv, nil, []string{"http://localhost:3000"}))
	t.Cleanup(ts.Close)

	store := session.NewStore(session.NewMemoryStorage())
	client := api.NewClient(ts.URL+"/api", store)
	store.SetAPI(client)
	require.NoError(t, store.SignUp(context.Background(), "alice@example.com", "alice", "secret123"))

	prog := progress.NewLedger(client)
	return lesson.NewCache(client, prog, points.NewLedger(client)), prog
}

func TestFetchLessonBecomesCurrent(t *testing.T) {
	cache, prog := newCache(t)

	loaded, err := cache.FetchLesson(context.Background(), "go-basics", "variables")
	require.NoError(t, err)
	require.Len(t, loaded.Exercises, 3)

	courseID, lessonID := cache.Current()
	assert.Equal(t, "go-basics", courseID)
	assert.Equal(t, "variables", lessonID)

	current := cache.CurrentLesson()
	require.NotNil(t, current)
	assert.Equal(t, "variables", current.ID)

	// Прогресс урока подтянут заодно (пустой, но закэширован).
	_, ok := prog.LessonProgress("go-basics", "variables")
	assert.True(t, ok)
}

func TestFetchUnknownLesson(t *testing.T) {
	cache, _ := newCache(t)

	_, err := cache.FetchLesson(context.Background(), "go-basics", "no-such-lesson")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, cache.CurrentLesson())
}

func TestSelectLessonCachedOnly(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	assert.False(t, cache.SelectLesson("go-basics", "variables"))

	_, err := cache.FetchLesson(ctx, "go-basics", "variables")
	require.NoError(t, err)
	_, err = cache.FetchLesson(ctx, "go-basics", "flow")
	require.NoError(t, err)

	// Переключение назад без сети.
	assert.True(t, cache.SelectLesson("go-basics", "variables"))
	_, lessonID := cache.Current()
	assert.Equal(t, "variables", lessonID)
}

func TestSeedLessons(t *testing.T) {
	cache, _ := newCache(t)

	cache.SeedLessons("c1", []domain.Lesson{
		{ID: "l1", Title: "One", Exercises: []domain.Exercise{{ID: "e1"}}},
		{ID: "l2", Title: "Two", Exercises: []domain.Exercise{{ID: "e2"}}},
	})

	got, ok := cache.Lesson("c1", "l2")
	assert.True(t, ok)
	assert.Equal(t, "Two", got.Title)
	assert.Len(t, cache.LessonsForCourse("c1"), 2)

	// Seed указатель не трогает.
	assert.Nil(t, cache.CurrentLesson())
}

func TestClearLessonData(t *testing.T) {
	cache, _ := newCache(t)

	_, err := cache.FetchLesson(context.Background(), "go-basics", "variables")
	require.NoError(t, err)

	cache.ClearLessonData()

	assert.Nil(t, cache.CurrentLesson())
	_, ok := cache.Lesson("go-basics", "variables")
	assert.False(t, ok)
}
