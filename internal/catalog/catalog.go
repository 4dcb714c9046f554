package catalog

import (
	"context"
	"fmt"
	"math"
	"sync"

	"learnplatform/internal/api"
	"learnplatform/internal/domain"
)

// Catalog владеет записями курсов: индекс без тел уроков грузится
// сразу, уроки конкретного курса — лениво. За содержимое уроков
// отвечает lesson.Cache, каталог хранит только последовательность и
// правила доступа.
type Catalog struct {
	api      *api.Client
	progress progressReader

	mu              sync.RWMutex
	courses         map[string]domain.Course
	currentCourseID string
}

// progressReader — то, что каталогу нужно от ProgressLedger.
type progressReader interface {
	FetchCourseProgress(ctx context.Context, courseID string) domain.CourseProgress
	IsLessonCompleted(courseID, lessonID string) bool
}

func NewCatalog(client *api.Client, progress progressReader) *Catalog {
	return &Catalog{
		api:      client,
		progress: progress,
		courses:  make(map[string]domain.Course),
	}
}

// FetchCourses грузит индекс курсов без уроков.
func (c *Catalog) FetchCourses(ctx context.Context) ([]api.CourseInfo, error) {
	infos, err := c.api.ListCourses(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for _, info := range infos {
		existing := c.courses[info.ID]
		c.courses[info.ID] = domain.Course{
			ID:           info.ID,
			Name:         info.Name,
			Description:  info.Description,
			LessonAmount: info.LessonAmount,
			Lessons:      existing.Lessons, // уже загруженные уроки не теряем
		}
	}
	c.mu.Unlock()

	return infos, nil
}

// FetchCourse грузит один курс целиком, делает его текущим и освежает
// прогресс курса. Сбой прогресса курс не валит: прогресс деградирует
// до пустой записи внутри ledger-а.
func (c *Catalog) FetchCourse(ctx context.Context, courseID string) (*domain.Course, error) {
	course, err := c.FetchCourseData(ctx, courseID)
	if err != nil {
		return nil, err
	}

	c.StoreCourse(*course)
	c.progress.FetchCourseProgress(ctx, courseID)

	return course, nil
}

// FetchCourseData — сетевой шаг без записи состояния. Оркестратор
// использует его отдельно, чтобы отбросить устаревший ответ до того,
// как тот затронет кэш или указатель текущего курса.
func (c *Catalog) FetchCourseData(ctx context.Context, courseID string) (*domain.Course, error) {
	resp, err := c.api.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Lessons == nil {
		return nil, fmt.Errorf("%w: course %s has no lessons", domain.ErrInvalidLessonData, courseID)
	}

	c.mu.RLock()
	lessonAmount := len(resp.Lessons)
	if lessonAmount == 0 {
		// Детальная выдача может временно не прислать уроки полностью,
		// известное ранее количество не затираем.
		lessonAmount = c.courses[resp.ID].LessonAmount
	}
	c.mu.RUnlock()

	return &domain.Course{
		ID:           resp.ID,
		Name:         resp.Name,
		Description:  resp.Description,
		LessonAmount: lessonAmount,
		Lessons:      resp.Lessons,
	}, nil
}

// StoreCourse коммитит курс в кэш и делает его текущим.
func (c *Catalog) StoreCourse(course domain.Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses[course.ID] = course
	c.currentCourseID = course.ID
}

// CourseProgressPercent считает процент завершения из локального
// прогресса уроков: round(100 * completed / total), 0 для пустого курса.
func (c *Catalog) CourseProgressPercent(courseID string) int {
	c.mu.RLock()
	course, ok := c.courses[courseID]
	c.mu.RUnlock()

	if !ok || len(course.Lessons) == 0 {
		return 0
	}

	completed := 0
	for _, lesson := range course.Lessons {
		if c.progress.IsLessonCompleted(courseID, lesson.ID) {
			completed++
		}
	}

	return int(math.Round(float64(completed) / float64(len(course.Lessons)) * 100))
}

// CanAccessLesson: первый урок открыт всегда, любой следующий — только
// после завершения непосредственно предыдущего.
func (c *Catalog) CanAccessLesson(courseID, lessonID string) bool {
	c.mu.RLock()
	course, ok := c.courses[courseID]
	c.mu.RUnlock()

	if !ok || course.Lessons == nil {
		return false
	}

	index := -1
	for i, lesson := range course.Lessons {
		if lesson.ID == lessonID {
			index = i
			break
		}
	}

	if index == 0 {
		return true
	}
	if index > 0 {
		prev := course.Lessons[index-1]
		return c.progress.IsLessonCompleted(courseID, prev.ID)
	}

	return false
}

// NextLesson возвращает урок сразу после current в порядке курса,
// nil — если current последний или неизвестен.
func (c *Catalog) NextLesson(currentLessonID string) *domain.Lesson {
	course := c.CurrentCourse()
	if course == nil || course.Lessons == nil {
		return nil
	}

	for i, lesson := range course.Lessons {
		if lesson.ID == currentLessonID {
			if i >= len(course.Lessons)-1 {
				return nil
			}
			next := course.Lessons[i+1]
			return &next
		}
	}
	return nil
}

// Lesson ищет урок в текущем курсе без похода в сеть.
func (c *Catalog) Lesson(lessonID string) *domain.Lesson {
	course := c.CurrentCourse()
	if course == nil {
		return nil
	}
	for _, lesson := range course.Lessons {
		if lesson.ID == lessonID {
			l := lesson
			return &l
		}
	}
	return nil
}

func (c *Catalog) Course(courseID string) (domain.Course, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	course, ok := c.courses[courseID]
	return course, ok
}

func (c *Catalog) CurrentCourse() *domain.Course {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.currentCourseID == "" {
		return nil
	}
	course, ok := c.courses[c.currentCourseID]
	if !ok {
		return nil
	}
	return &course
}

func (c *Catalog) AvailableCourses() []domain.Course {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Course, 0, len(c.courses))
	for _, course := range c.courses {
		out = append(out, course)
	}
	return out
}

// ClearCourseData сбрасывает каталог при разлогине.
func (c *Catalog) ClearCourseData() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses = make(map[string]domain.Course)
	c.currentCourseID = ""
}
