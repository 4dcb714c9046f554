package catalog_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnplatform/internal/api"
	"learnplatform/internal/catalog"
	"learnplatform/internal/devserver"
	"learnplatform/internal/domain"
	"learnplatform/internal/progress"
	"learnplatform/internal/session"
)

func newEnv(t *testing.T) (*catalog.Catalog, *progress.Ledger, *api.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := devserver.NewServer(devserver.DemoContent(), devserver.NewMemoryRepository(), devserver.NewTokenManager("test-secret"))
	ts := httptest.NewServer(devserver.NewRouter(srv, nil, []string{"http://localhost:3000"}))
	t.Cleanup(ts.Close)

	store := session.NewStore(session.NewMemoryStorage())
	client := api.NewClient(ts.URL+"/api", store)
	store.SetAPI(client)
	require.NoError(t, store.SignUp(context.Background(), "alice@example.com", "alice", "secret123"))

	ledger := progress.NewLedger(client)
	return catalog.NewCatalog(client, ledger), ledger, client
}

func completeLesson(t *testing.T, ledger *progress.Ledger, client *api.Client, courseID, lessonID string) {
	t.Helper()
	ctx := context.Background()
	lesson, err := client.GetLesson(ctx, courseID, lessonID)
	require.NoError(t, err)
	applied, err := ledger.UpdateLessonProgress(ctx, courseID, lessonID, domain.StatusCompleted, lesson, lesson.LastExerciseID())
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, applied)
}

func TestFetchCoursesIndex(t *testing.T) {
	cat, _, _ := newEnv(t)

	infos, err := cat.FetchCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byID := make(map[string]api.CourseInfo)
	for _, info := range infos {
		byID[info.ID] = info
	}
	assert.Equal(t, 3, byID["go-basics"].LessonAmount)
	assert.Equal(t, 2, byID["concurrency"].LessonAmount)

	// Индекс не тянет тела уроков.
	course, ok := cat.Course("go-basics")
	assert.True(t, ok)
	assert.Nil(t, course.Lessons)
}

// Сетевой шаг не трогает состояние: кэш и текущий курс меняет только
// явный коммит.
func TestFetchCourseDataDoesNotTouchCache(t *testing.T) {
	cat, _, _ := newEnv(t)
	ctx := context.Background()

	course, err := cat.FetchCourseData(ctx, "go-basics")
	require.NoError(t, err)
	require.Len(t, course.Lessons, 3)

	assert.Nil(t, cat.CurrentCourse())
	_, ok := cat.Course("go-basics")
	assert.False(t, ok)

	cat.StoreCourse(*course)

	cur := cat.CurrentCourse()
	require.NotNil(t, cur)
	assert.Equal(t, "go-basics", cur.ID)
	cached, ok := cat.Course("go-basics")
	require.True(t, ok)
	assert.Len(t, cached.Lessons, 3)
}

func TestFetchCourseLoadsLessons(t *testing.T) {
	cat, _, _ := newEnv(t)
	ctx := context.Background()

	course, err := cat.FetchCourse(ctx, "go-basics")
	require.NoError(t, err)
	require.Len(t, course.Lessons, 3)
	assert.Equal(t, 3, course.LessonAmount)
	assert.Equal(t, "variables", course.Lessons[0].ID)

	current := cat.CurrentCourse()
	require.NotNil(t, current)
	assert.Equal(t, "go-basics", current.ID)
}

func TestFetchCoursesPreservesLoadedLessons(t *testing.T) {
	cat, _, _ := newEnv(t)
	ctx := context.Background()

	_, err := cat.FetchCourse(ctx, "go-basics")
	require.NoError(t, err)

	// Повторная загрузка индекса не должна терять загруженные уроки.
	_, err = cat.FetchCourses(ctx)
	require.NoError(t, err)

	course, ok := cat.Course("go-basics")
	require.True(t, ok)
	assert.Len(t, course.Lessons, 3)
}

func TestUnknownCourse(t *testing.T) {
	cat, _, _ := newEnv(t)

	_, err := cat.FetchCourse(context.Background(), "no-such-course")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLessonGating(t *testing.T) {
	cat, ledger, client := newEnv(t)
	ctx := context.Background()

	_, err := cat.FetchCourse(ctx, "go-basics")
	require.NoError(t, err)

	// Первый урок открыт всегда, дальше — только по завершению предыдущего.
	assert.True(t, cat.CanAccessLesson("go-basics", "variables"))
	assert.False(t, cat.CanAccessLesson("go-basics", "flow"))
	assert.False(t, cat.CanAccessLesson("go-basics", "functions"))

	completeLesson(t, ledger, client, "go-basics", "variables")

	assert.True(t, cat.CanAccessLesson("go-basics", "flow"))
	assert.False(t, cat.CanAccessLesson("go-basics", "functions"))

	assert.False(t, cat.CanAccessLesson("go-basics", "no-such-lesson"))
}

func TestCourseProgressPercent(t *testing.T) {
	cat, ledger, client := newEnv(t)
	ctx := context.Background()

	assert.Equal(t, 0, cat.CourseProgressPercent("go-basics"))

	_, err := cat.FetchCourse(ctx, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, 0, cat.CourseProgressPercent("go-basics"))

	completeLesson(t, ledger, client, "go-basics", "variables")
	assert.Equal(t, 33, cat.CourseProgressPercent("go-basics"))

	completeLesson(t, ledger, client, "go-basics", "flow")
	assert.Equal(t, 67, cat.CourseProgressPercent("go-basics"))

	completeLesson(t, ledger, client, "go-basics", "functions")
	assert.Equal(t, 100, cat.CourseProgressPercent("go-basics"))
}

func TestNextLesson(t *testing.T) {
	cat, _, _ := newEnv(t)

	_, err := cat.FetchCourse(context.Background(), "go-basics")
	require.NoError(t, err)

	next := cat.NextLesson("variables")
	require.NotNil(t, next)
	assert.Equal(t, "flow", next.ID)

	assert.Nil(t, cat.NextLesson("functions"))
	assert.Nil(t, cat.NextLesson("no-such-lesson"))
}

func TestClearCourseData(t *testing.T) {
	cat, _, _ := newEnv(t)

	_, err := cat.FetchCourse(context.Background(), "go-basics")
	require.NoError(t, err)

	cat.ClearCourseData()

	assert.Nil(t, cat.CurrentCourse())
	assert.Empty(t, cat.AvailableCourses())
}
