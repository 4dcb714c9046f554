package exercise

import (
	"context"
	"sync"

	"learnplatform/internal/domain"
)

// Cursor держит указатель на текущее упражнение и транзиентную карту
// последний-ответ/результат на упражнение (один слот, last-write-wins;
// полная история попыток живет в ProgressLedger). Данными упражнений
// курсор не владеет — текущий урок приходит аргументом, чтобы
// направление зависимостей оставалось явным.
type Cursor struct {
	progress progressWriter
	points   pointsSubmitter

	mu                sync.RWMutex
	currentExerciseID string
	previousAnswers   map[string]string
	submissionResults map[string]bool
}

type progressWriter interface {
	UpdateLessonProgress(ctx context.Context, courseID, lessonID string, status domain.Status, lesson *domain.Lesson, triggerExerciseID string) (domain.Status, error)
	RecordAttempt(courseID, lessonID, exerciseID, answer string, isCorrect bool) domain.ExerciseAttempt
}

type pointsSubmitter interface {
	SubmitExerciseAttempt(ctx context.Context, courseID, lessonID, exerciseID, answer string) (*domain.ExercisePointsResult, error)
}

func NewCursor(progress progressWriter, points pointsSubmitter) *Cursor {
	return &Cursor{
		progress:          progress,
		points:            points,
		previousAnswers:   make(map[string]string),
		submissionResults: make(map[string]bool),
	}
}

func key(courseID, lessonID, exerciseID string) string {
	return courseID + "-" + lessonID + "-" + exerciseID
}

func (c *Cursor) SetCurrentExercise(exerciseID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentExerciseID = exerciseID
}

func (c *Cursor) CurrentExerciseID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentExerciseID
}

// CurrentExercise резолвит указатель против переданного урока.
// Незагруженный урок дает nil, а не панику.
func (c *Cursor) CurrentExercise(lesson *domain.Lesson) *domain.Exercise {
	c.mu.RLock()
	id := c.currentExerciseID
	c.mu.RUnlock()

	if lesson == nil || id == "" {
		return nil
	}
	for _, ex := range lesson.Exercises {
		if ex.ID == id {
			e := ex
			return &e
		}
	}
	return nil
}

// SubmitAnswer отправляет ответ на points-эндпоинт, пишет результат в
// локальный слот и при верном ответе двигает статус урока: completed
// только если это последнее упражнение (правило досчитывает ledger).
// Бонус за завершение урока здесь не начисляется — это обязанность
// оркестратора, который дедуплицирует переход.
func (c *Cursor) SubmitAnswer(ctx context.Context, courseID string, lesson *domain.Lesson, answer string) (*domain.ExercisePointsResult, error) {
	c.mu.RLock()
	exerciseID := c.currentExerciseID
	c.mu.RUnlock()

	if courseID == "" || lesson == nil || exerciseID == "" || lesson.ExerciseIndex(exerciseID) < 0 {
		return nil, domain.ErrNoActiveExercise
	}

	result, err := c.points.SubmitExerciseAttempt(ctx, courseID, lesson.ID, exerciseID, answer)
	if err != nil {
		return nil, err
	}

	k := key(courseID, lesson.ID, exerciseID)
	c.mu.Lock()
	c.previousAnswers[k] = answer
	c.submissionResults[k] = result.IsCorrect
	c.mu.Unlock()

	c.progress.RecordAttempt(courseID, lesson.ID, exerciseID, answer, result.IsCorrect)

	if result.IsCorrect {
		status := domain.StatusInProgress
		if exerciseID == lesson.LastExerciseID() {
			status = domain.StatusCompleted
		}
		if _, err := c.progress.UpdateLessonProgress(ctx, courseID, lesson.ID, status, lesson, exerciseID); err != nil {
			return result, err
		}
	}

	return result, nil
}

// NextExercise двигает указатель на следующее упражнение урока.
// В конце последовательности возвращает nil и указатель не трогает:
// границу урока пересекает только оркестратор.
func (c *Cursor) NextExercise(lesson *domain.Lesson) *domain.Exercise {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lesson == nil || c.currentExerciseID == "" {
		return nil
	}

	index := lesson.ExerciseIndex(c.currentExerciseID)
	if index < 0 || index >= len(lesson.Exercises)-1 {
		return nil
	}

	next := lesson.Exercises[index+1]
	c.currentExerciseID = next.ID
	return &next
}

// ResetCurrentExercise чистит слот текущего упражнения для повторной
// попытки.
func (c *Cursor) ResetCurrentExercise(courseID, lessonID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if courseID == "" || lessonID == "" || c.currentExerciseID == "" {
		return
	}
	k := key(courseID, lessonID, c.currentExerciseID)
	delete(c.previousAnswers, k)
	delete(c.submissionResults, k)
}

func (c *Cursor) PreviousAnswer(courseID, lessonID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.currentExerciseID == "" {
		return "", false
	}
	answer, ok := c.previousAnswers[key(courseID, lessonID, c.currentExerciseID)]
	return answer, ok
}

func (c *Cursor) HasAttempted(courseID, lessonID string) bool {
	_, ok := c.PreviousAnswer(courseID, lessonID)
	return ok
}

func (c *Cursor) WasCorrect(courseID, lessonID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.currentExerciseID == "" {
		return false
	}
	return c.submissionResults[key(courseID, lessonID, c.currentExerciseID)]
}

// ClearExerciseData сбрасывает курсор при разлогине.
func (c *Cursor) ClearExerciseData() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentExerciseID = ""
	c.previousAnswers = make(map[string]string)
	c.submissionResults = make(map[string]bool)
}
