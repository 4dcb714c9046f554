package devserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnplatform/internal/api"
	"learnplatform/internal/devserver"
	"learnplatform/internal/domain"
	"learnplatform/internal/session"
)

func newBackend(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := devserver.NewServer(devserver.DemoContent(), devserver.NewMemoryRepository(), devserver.NewTokenManager("test-secret"))
	ts := httptest.NewServer(devserver.NewRouter(srv, nil, []string{"http://localhost:3000"}))
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

func signedClient(t *testing.T, base, email, username string) *api.Client {
	t.Helper()
	store := session.NewStore(session.NewMemoryStorage())
	client := api.NewClient(base, store)
	store.SetAPI(client)
	require.NoError(t, store.SignUp(context.Background(), email, username, "secret123"))
	return client
}

func TestRegisterValidation(t *testing.T) {
	base := newBackend(t)
	client := api.NewClient(base, nil)
	ctx := context.Background()

	_, err := client.SignUp(ctx, "not-an-email", "bob", "secret123")
	assert.Equal(t, http.StatusBadRequest, api.StatusCode(err))

	_, err = client.SignUp(ctx, "bob@example.com", "bob", "short")
	assert.Equal(t, http.StatusBadRequest, api.StatusCode(err))

	resp, err := client.SignUp(ctx, "bob@example.com", "bob", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.Username)
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	base := newBackend(t)

	for _, header := range []string{"", "nonsense", "Bearer garbage"} {
		req, err := http.NewRequest(http.MethodGet, base+"/points/summary", nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "header %q", header)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := devserver.NewTokenManager("test-secret")

	token, expiresAt, err := tokens.Generate("alice")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	username, err := tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = tokens.Validate(token + "x")
	assert.Error(t, err)

	other := devserver.NewTokenManager("other-secret")
	_, err = other.Validate(token)
	assert.Error(t, err)
}

// Лимитер с недоступным Redis пропускает логин, а не блокирует его.
func TestRateLimiterPassesThroughWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := devserver.NewServer(devserver.DemoContent(), devserver.NewMemoryRepository(), devserver.NewTokenManager("test-secret"))
	limiter := devserver.NewRateLimiter(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), 5, time.Minute)
	ts := httptest.NewServer(devserver.NewRouter(srv, limiter, []string{"http://localhost:3000"}))
	t.Cleanup(ts.Close)

	store := session.NewStore(session.NewMemoryStorage())
	client := api.NewClient(ts.URL+"/api", store)
	store.SetAPI(client)
	ctx := context.Background()

	require.NoError(t, store.SignUp(ctx, "carol@example.com", "carol", "secret123"))
	store.SignOut(ctx)
	require.NoError(t, store.SignIn(ctx, "carol", "secret123"))
	assert.True(t, store.IsValid())
}

func TestCourseContentHidesAnswers(t *testing.T) {
	base := newBackend(t)
	client := api.NewClient(base, nil)

	lesson, err := client.GetLesson(context.Background(), "go-basics", "variables")
	require.NoError(t, err)
	require.Len(t, lesson.Exercises, 3)
	assert.Equal(t, domain.ExerciseMultipleChoice, lesson.Exercises[0].Type)
	assert.NotEmpty(t, lesson.Exercises[0].Options)
}

func TestProgressNoDowngrade(t *testing.T) {
	base := newBackend(t)
	client := signedClient(t, base, "alice@example.com", "alice")
	ctx := context.Background()

	require.NoError(t, client.UpdateLessonProgress(ctx, "go-basics", "variables", domain.StatusCompleted))

	// Попытка отката: сервер сохраняет completed.
	require.NoError(t, client.UpdateLessonProgress(ctx, "go-basics", "variables", domain.StatusInProgress))

	rec, err := client.GetLessonProgress(ctx, "go-basics", "variables")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, rec.Status)
	assert.NotNil(t, rec.CompletedAt)
}

func TestProgressNotFound(t *testing.T) {
	base := newBackend(t)
	client := signedClient(t, base, "alice@example.com", "alice")
	ctx := context.Background()

	_, err := client.GetLessonProgress(ctx, "go-basics", "variables")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = client.GetCourseProgress(ctx, "go-basics")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = client.GetLesson(ctx, "go-basics", "no-such-lesson")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCourseProgressRecalc(t *testing.T) {
	base := newBackend(t)
	client := signedClient(t, base, "alice@example.com", "alice")
	ctx := context.Background()

	require.NoError(t, client.UpdateLessonProgress(ctx, "concurrency", "goroutines", domain.StatusCompleted))

	cp, err := client.GetCourseProgress(ctx, "concurrency")
	require.NoError(t, err)
	assert.Equal(t, 50, cp.ProgressPercentage)
	assert.Equal(t, domain.StatusInProgress, cp.Status)

	require.NoError(t, client.UpdateLessonProgress(ctx, "concurrency", "channels", domain.StatusCompleted))

	cp, err = client.GetCourseProgress(ctx, "concurrency")
	require.NoError(t, err)
	assert.Equal(t, 100, cp.ProgressPercentage)
	assert.Equal(t, domain.StatusCompleted, cp.Status)
	assert.NotNil(t, cp.CompletedAt)
}

func TestPointsStreakBonus(t *testing.T) {
	base := newBackend(t)
	client := signedClient(t, base, "alice@example.com", "alice")
	ctx := context.Background()

	answers := []struct {
		exerciseID string
		answer     string
		points     int
		streak     int
	}{
		{"var-1", "0", 10, 1},
		{"var-2", "false", 10, 2},
		{"var-3", "const", 15, 3}, // начиная с третьего подряд — бонус
	}
	for _, a := range answers {
		result, err := client.SubmitAttemptWithPoints(ctx, "go-basics", "variables", a.exerciseID, a.answer)
		require.NoError(t, err)
		assert.True(t, result.IsCorrect)
		assert.Equal(t, a.points, result.Points, a.exerciseID)
		assert.Equal(t, a.streak, result.CurrentStreak)
	}

	// Ошибка сбрасывает стрик, но не максимум.
	result, err := client.SubmitAttemptWithPoints(ctx, "go-basics", "flow", "flow-1", "while")
	require.NoError(t, err)
	assert.False(t, result.IsCorrect)
	assert.Zero(t, result.Points)
	assert.Zero(t, result.CurrentStreak)
	assert.Equal(t, 3, result.MaxStreak)
	assert.Equal(t, 0.75, result.AccuracyRate)
	assert.Equal(t, 4, result.TotalAttempts)
}

func TestCaseInsensitiveAnswers(t *testing.T) {
	base := newBackend(t)
	client := signedClient(t, base, "alice@example.com", "alice")

	result, err := client.SubmitAttemptWithPoints(context.Background(), "go-basics", "variables", "var-3", "  CONST ")
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
}

func TestLessonPointsZeroWhenAbsent(t *testing.T) {
	base := newBackend(t)
	client := signedClient(t, base, "alice@example.com", "alice")

	data, err := client.GetLessonPoints(context.Background(), "go-basics", "variables")
	require.NoError(t, err)
	assert.Zero(t, data.TotalPoints)
	assert.Equal(t, "variables", data.LessonID)
}

func TestCompletionBonuses(t *testing.T) {
	base := newBackend(t)
	client := signedClient(t, base, "alice@example.com", "alice")
	ctx := context.Background()

	tx, err := client.CompleteLesson(ctx, "go-basics", "variables")
	require.NoError(t, err)
	assert.Equal(t, "lesson_complete", tx.TransactionType)
	assert.Equal(t, 50, tx.Points)

	tx, err = client.CompleteCourse(ctx, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, "course_complete", tx.TransactionType)
	assert.Equal(t, 200, tx.Points)

	summary, err := client.GetPointsSummary(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 250, summary.TotalPoints)
	assert.Len(t, summary.RecentTransactions, 2)
}

func TestLeaderboardOrdering(t *testing.T) {
	base := newBackend(t)
	alice := signedClient(t, base, "alice@example.com", "alice")
	bob := signedClient(t, base, "bob@example.com", "bob")
	ctx := context.Background()

	_, err := alice.CompleteLesson(ctx, "go-basics", "variables")
	require.NoError(t, err)
	_, err = bob.CompleteCourse(ctx, "go-basics")
	require.NoError(t, err)

	entries, err := alice.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bob", entries[0].Username)
	assert.Equal(t, 200, entries[0].TotalPoints)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "alice", entries[1].Username)
	assert.Equal(t, 2, entries[1].Rank)
}

func TestDailyStreakAndAccuracy(t *testing.T) {
	base := newBackend(t)
	client := signedClient(t, base, "alice@example.com", "alice")
	ctx := context.Background()

	streak, err := client.GetDailyStreak(ctx)
	require.NoError(t, err)
	assert.Zero(t, streak.CurrentStreak)

	_, err = client.SubmitAttemptWithPoints(ctx, "go-basics", "variables", "var-1", "0")
	require.NoError(t, err)

	streak, err = client.GetDailyStreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, streak.CurrentStreak)
	assert.Equal(t, time.Now().Format("2006-01-02"), streak.LastActiveDay)

	acc, err := client.GetAccuracy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, acc.TotalAttempts)
	assert.Equal(t, 1.0, acc.AccuracyRate)
}
