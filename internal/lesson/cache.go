package lesson

import (
	"context"
	"fmt"
	"sync"

	"learnplatform/internal/api"
	"learnplatform/internal/domain"
)

// Cache владеет содержимым уроков, ключ — (courseId, lessonId), плюс
// указатель на текущий урок. Последовательность и gating остаются за
// каталогом, здесь только контент.
type Cache struct {
	api      *api.Client
	progress progressFetcher
	points   pointsFetcher

	mu              sync.RWMutex
	lessons         map[string]map[string]domain.Lesson
	currentCourseID string
	currentLessonID string
}

type progressFetcher interface {
	FetchLessonProgress(ctx context.Context, courseID, lessonID string) domain.LessonProgress
}

type pointsFetcher interface {
	FetchLessonPoints(ctx context.Context, courseID, lessonID string) *domain.LessonPointsData
}

func NewCache(client *api.Client, progress progressFetcher, points pointsFetcher) *Cache {
	return &Cache{
		api:      client,
		progress: progress,
		points:   points,
		lessons:  make(map[string]map[string]domain.Lesson),
	}
}

// FetchLesson грузит урок с упражнениями, делает его текущим и
// best-effort подтягивает прогресс и очки урока (их сбои не фатальны
// и глотаются внутри ledger-ов).
func (c *Cache) FetchLesson(ctx context.Context, courseID, lessonID string) (*domain.Lesson, error) {
	resp, err := c.FetchLessonData(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	c.StoreLesson(courseID, *resp)
	c.SetCurrent(courseID, lessonID)

	c.progress.FetchLessonProgress(ctx, courseID, lessonID)
	c.points.FetchLessonPoints(ctx, courseID, lessonID)

	return resp, nil
}

// FetchLessonData — сетевой шаг без записи состояния. Оркестратор
// использует его отдельно, чтобы отбросить устаревший ответ до того,
// как тот затронет кэш или указатель.
func (c *Cache) FetchLessonData(ctx context.Context, courseID, lessonID string) (*domain.Lesson, error) {
	resp, err := c.api.GetLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	if resp.Exercises == nil {
		return nil, fmt.Errorf("%w: lesson %s/%s has no exercises", domain.ErrInvalidLessonData, courseID, lessonID)
	}
	return resp, nil
}

func (c *Cache) StoreLesson(courseID string, lesson domain.Lesson) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lessons[courseID] == nil {
		c.lessons[courseID] = make(map[string]domain.Lesson)
	}
	c.lessons[courseID][lesson.ID] = lesson
}

func (c *Cache) SetCurrent(courseID, lessonID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentCourseID = courseID
	c.currentLessonID = lessonID
}

// SeedLessons кладет уроки, пришедшие вместе с курсом, без похода в сеть.
func (c *Cache) SeedLessons(courseID string, lessons []domain.Lesson) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lessons[courseID] == nil {
		c.lessons[courseID] = make(map[string]domain.Lesson)
	}
	for _, l := range lessons {
		c.lessons[courseID][l.ID] = l
	}
}

// SelectLesson переключает указатель на уже закэшированный урок.
// false — если урока в кэше нет и нужен FetchLesson.
func (c *Cache) SelectLesson(courseID, lessonID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lessons[courseID][lessonID]; !ok {
		return false
	}
	c.currentCourseID = courseID
	c.currentLessonID = lessonID
	return true
}

func (c *Cache) CurrentLesson() *domain.Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.currentCourseID == "" || c.currentLessonID == "" {
		return nil
	}
	lesson, ok := c.lessons[c.currentCourseID][c.currentLessonID]
	if !ok {
		return nil
	}
	return &lesson
}

// Current возвращает идентификаторы текущего (курс, урок).
func (c *Cache) Current() (courseID, lessonID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentCourseID, c.currentLessonID
}

func (c *Cache) Lesson(courseID, lessonID string) (domain.Lesson, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lesson, ok := c.lessons[courseID][lessonID]
	return lesson, ok
}

func (c *Cache) LessonsForCourse(courseID string) []domain.Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Lesson, 0, len(c.lessons[courseID]))
	for _, l := range c.lessons[courseID] {
		out = append(out, l)
	}
	return out
}

// ClearLessonData сбрасывает кэш при разлогине.
func (c *Cache) ClearLessonData() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lessons = make(map[string]map[string]domain.Lesson)
	c.currentCourseID = ""
	c.currentLessonID = ""
}
