package exercise_test

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
	"learnplatform/internal/exercise"
	"learnplatform/internal/points"
	"learnplatform/internal/progress"
	"learnplatform/internal/session"
)

func newEnv(t *testing.T) (*exercise.Cursor, *progress.Ledger, *domain.Lesson) {
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
	pts := points.NewLedger(client)
	cursor := exercise.NewCursor(prog, pts)

	lesson, err := client.GetLesson(context.Background(), "go-basics", "variables")
	require.NoError(t, err)

	return cursor, prog, lesson
}

func TestSubmitWithoutActiveExercise(t *testing.T) {
	cursor, _, lesson := newEnv(t)
	ctx := context.Background()

	_, err := cursor.SubmitAnswer(ctx, "go-basics", lesson, "0")
	assert.ErrorIs(t, err, domain.ErrNoActiveExercise)

	// Указатель на чужое упражнение — тоже не активное состояние.
	cursor.SetCurrentExercise("not-in-lesson")
	_, err = cursor.SubmitAnswer(ctx, "go-basics", lesson, "0")
	assert.ErrorIs(t, err, domain.ErrNoActiveExercise)

	cursor.SetCurrentExercise("var-1")
	_, err = cursor.SubmitAnswer(ctx, "go-basics", nil, "0")
	assert.ErrorIs(t, err, domain.ErrNoActiveExercise)
}

func TestSubmitCorrectMidLesson(t *testing.T) {
	cursor, prog, lesson := newEnv(t)
	ctx := context.Background()

	cursor.SetCurrentExercise("var-1")
	result, err := cursor.SubmitAnswer(ctx, "go-basics", lesson, "0")
	require.NoError(t, err)

	assert.True(t, result.IsCorrect)
	assert.Equal(t, 10, result.Points)

	// Не последнее упражнение: урок только in_progress.
	assert.Equal(t, domain.StatusInProgress, prog.LessonStatus("go-basics", "variables"))

	answer, ok := cursor.PreviousAnswer("go-basics", "variables")
	assert.True(t, ok)
	assert.Equal(t, "0", answer)
	assert.True(t, cursor.WasCorrect("go-basics", "variables"))

	latest, ok := prog.LatestAttempt("go-basics", "variables", "var-1")
	assert.True(t, ok)
	assert.Equal(t, 1, latest.AttemptNumber)
}

func TestSubmitWrongAnswer(t *testing.T) {
	cursor, prog, lesson := newEnv(t)
	ctx := context.Background()

	cursor.SetCurrentExercise("var-1")
	result, err := cursor.SubmitAnswer(ctx, "go-basics", lesson, "nil")
	require.NoError(t, err)

	assert.False(t, result.IsCorrect)
	assert.Zero(t, result.Points)
	assert.True(t, cursor.HasAttempted("go-basics", "variables"))
	assert.False(t, cursor.WasCorrect("go-basics", "variables"))

	// Неверный ответ статус урока не двигает.
	assert.Equal(t, domain.StatusNotStarted, prog.LessonStatus("go-basics", "variables"))
}

func TestLastWriteWinsSlot(t *testing.T) {
	cursor, _, lesson := newEnv(t)
	ctx := context.Background()

	cursor.SetCurrentExercise("var-1")
	_, err := cursor.SubmitAnswer(ctx, "go-basics", lesson, "nil")
	require.NoError(t, err)
	_, err = cursor.SubmitAnswer(ctx, "go-basics", lesson, "0")
	require.NoError(t, err)

	answer, ok := cursor.PreviousAnswer("go-basics", "variables")
	assert.True(t, ok)
	assert.Equal(t, "0", answer)
	assert.True(t, cursor.WasCorrect("go-basics", "variables"))
}

func TestCompleteOnLastExercise(t *testing.T) {
	cursor, prog, lesson := newEnv(t)
	ctx := context.Background()

	cursor.SetCurrentExercise("var-3")
	result, err := cursor.SubmitAnswer(ctx, "go-basics", lesson, "const")
	require.NoError(t, err)

	assert.True(t, result.IsCorrect)
	assert.True(t, prog.IsLessonCompleted("go-basics", "variables"))
}

func TestNextExerciseAdvances(t *testing.T) {
	cursor, _, lesson := newEnv(t)

	cursor.SetCurrentExercise("var-1")

	next := cursor.NextExercise(lesson)
	require.NotNil(t, next)
	assert.Equal(t, "var-2", next.ID)
	assert.Equal(t, "var-2", cursor.CurrentExerciseID())

	next = cursor.NextExercise(lesson)
	require.NotNil(t, next)
	assert.Equal(t, "var-3", next.ID)

	// Конец последовательности: nil, указатель не трогаем.
	assert.Nil(t, cursor.NextExercise(lesson))
	assert.Equal(t, "var-3", cursor.CurrentExerciseID())
}

func TestResetCurrentExercise(t *testing.T) {
	cursor, _, lesson := newEnv(t)
	ctx := context.Background()

	cursor.SetCurrentExercise("var-1")
	_, err := cursor.SubmitAnswer(ctx, "go-basics", lesson, "nil")
	require.NoError(t, err)
	require.True(t, cursor.HasAttempted("go-basics", "variables"))

	cursor.ResetCurrentExercise("go-basics", "variables")

	assert.False(t, cursor.HasAttempted("go-basics", "variables"))
	assert.False(t, cursor.WasCorrect("go-basics", "variables"))
}

func TestCurrentExerciseResolution(t *testing.T) {
	cursor, _, lesson := newEnv(t)

	assert.Nil(t, cursor.CurrentExercise(lesson))

	cursor.SetCurrentExercise("var-2")
	ex := cursor.CurrentExercise(lesson)
	require.NotNil(t, ex)
	assert.Equal(t, "var-2", ex.ID)

	assert.Nil(t, cursor.CurrentExercise(nil))

	cursor.ClearExerciseData()
	assert.Empty(t, cursor.CurrentExerciseID())
	assert.Nil(t, cursor.CurrentExercise(lesson))
}
