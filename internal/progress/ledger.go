package progress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"learnplatform/internal/api"
	"learnplatform/internal/domain"
)

// Ledger — авторитетный клиентский кэш прогресса. Переходы статусов
// монотонны: not_started -> in_progress -> completed, движение назад
// игнорируется, а completed принимается только от последнего
// упражнения урока. Правило живет здесь, намерению вызывающего кода
// ledger не доверяет.
type Ledger struct {
	api *api.Client

	mu             sync.RWMutex
	courseProgress map[string]domain.CourseProgress
	lessonProgress map[string]domain.LessonProgress
	attempts       map[string][]domain.ExerciseAttempt
}

func NewLedger(client *api.Client) *Ledger {
	return &Ledger{
		api:            client,
		courseProgress: make(map[string]domain.CourseProgress),
		lessonProgress: make(map[string]domain.LessonProgress),
		attempts:       make(map[string][]domain.ExerciseAttempt),
	}
}

func lessonKey(courseID, lessonID string) string {
	return courseID + "-" + lessonID
}

func attemptKey(courseID, lessonID, exerciseID string) string {
	return courseID + "-" + lessonID + "-" + exerciseID
}

// FetchCourseProgress тянет прогресс курса с сервера. 404 — это не
// ошибка, а "прогресса еще нет": кэшируется пустая запись. Сетевые
// сбои деградируют до пустой записи без ошибки.
func (l *Ledger) FetchCourseProgress(ctx context.Context, courseID string) domain.CourseProgress {
	resp, err := l.api.GetCourseProgress(ctx, courseID)
	if err != nil {
		empty := domain.CourseProgress{CourseID: courseID, Status: domain.StatusNotStarted}
		if errors.Is(err, domain.ErrNotFound) {
			l.mu.Lock()
			l.courseProgress[courseID] = empty
			l.mu.Unlock()
			return empty
		}
		log.Printf("Failed to fetch course progress for %s: %v", courseID, err)
		return empty
	}

	l.mu.Lock()
	l.courseProgress[courseID] = *resp
	l.mu.Unlock()
	return *resp
}

func (l *Ledger) FetchLessonProgress(ctx context.Context, courseID, lessonID string) domain.LessonProgress {
	resp, err := l.api.GetLessonProgress(ctx, courseID, lessonID)
	if err != nil {
		empty := domain.LessonProgress{CourseID: courseID, LessonID: lessonID, Status: domain.StatusNotStarted}
		if errors.Is(err, domain.ErrNotFound) {
			l.mu.Lock()
			l.lessonProgress[lessonKey(courseID, lessonID)] = empty
			l.mu.Unlock()
			return empty
		}
		log.Printf("Failed to fetch lesson progress for %s/%s: %v", courseID, lessonID, err)
		return empty
	}

	l.mu.Lock()
	l.lessonProgress[lessonKey(courseID, lessonID)] = *resp
	l.mu.Unlock()
	return *resp
}

// InitCourseProgress просит сервер завести пустую запись прогресса
// курса, если ее еще нет, и кэширует результат.
func (l *Ledger) InitCourseProgress(ctx context.Context, courseID string) (domain.CourseProgress, error) {
	resp, err := l.api.InitCourseProgress(ctx, courseID)
	if err != nil {
		return domain.CourseProgress{CourseID: courseID, Status: domain.StatusNotStarted}, err
	}

	l.mu.Lock()
	l.courseProgress[courseID] = *resp
	l.mu.Unlock()
	return *resp, nil
}

// UpdateLessonProgress применяет правило монотонности, пишет статус на
// сервер и перечитывает прогресс урока и курса, чтобы кэш сошелся с
// серверной правдой (оптимистичной записи не верим).
//
// lesson и triggerExerciseID — контекст перехода: completed проходит
// только если triggerExerciseID является последним упражнением урока,
// иначе статус понижается до in_progress.
func (l *Ledger) UpdateLessonProgress(ctx context.Context, courseID, lessonID string, status domain.Status, lesson *domain.Lesson, triggerExerciseID string) (domain.Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}

	current := l.LessonStatus(courseID, lessonID)

	// Назад не ходим.
	if status.Before(current) {
		return current, nil
	}

	if status == domain.StatusCompleted {
		if lesson == nil || triggerExerciseID == "" || triggerExerciseID != lesson.LastExerciseID() {
			status = domain.StatusInProgress
			if status.Before(current) {
				return current, nil
			}
		}
	}

	if err := l.api.UpdateLessonProgress(ctx, courseID, lessonID, status); err != nil {
		return current, fmt.Errorf("%w: %v", domain.ErrProgressUpdateFailed, err)
	}

	// Сверка с сервером после записи.
	l.FetchLessonProgress(ctx, courseID, lessonID)
	l.FetchCourseProgress(ctx, courseID)

	return status, nil
}

func (l *Ledger) LessonStatus(courseID, lessonID string) domain.Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.lessonProgress[lessonKey(courseID, lessonID)]; ok {
		return p.Status
	}
	return domain.StatusNotStarted
}

func (l *Ledger) IsLessonCompleted(courseID, lessonID string) bool {
	return l.LessonStatus(courseID, lessonID) == domain.StatusCompleted
}

func (l *Ledger) CourseProgress(courseID string) (domain.CourseProgress, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.courseProgress[courseID]
	return p, ok
}

func (l *Ledger) LessonProgress(courseID, lessonID string) (domain.LessonProgress, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.lessonProgress[lessonKey(courseID, lessonID)]
	return p, ok
}

// RecordAttempt дописывает локальную историю попыток. Номера попыток
// строго растут, история никогда не переписывается.
func (l *Ledger) RecordAttempt(courseID, lessonID, exerciseID, answer string, isCorrect bool) domain.ExerciseAttempt {
	key := attemptKey(courseID, lessonID, exerciseID)

	l.mu.Lock()
	defer l.mu.Unlock()

	number := 1
	for _, a := range l.attempts[key] {
		if a.AttemptNumber >= number {
			number = a.AttemptNumber + 1
		}
	}

	attempt := domain.ExerciseAttempt{
		CourseID:      courseID,
		LessonID:      lessonID,
		ExerciseID:    exerciseID,
		AttemptNumber: number,
		Answer:        answer,
		IsCorrect:     isCorrect,
		AttemptedAt:   time.Now(),
	}
	l.attempts[key] = append(l.attempts[key], attempt)
	return attempt
}

func (l *Ledger) Attempts(courseID, lessonID, exerciseID string) []domain.ExerciseAttempt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	attempts := l.attempts[attemptKey(courseID, lessonID, exerciseID)]
	out := make([]domain.ExerciseAttempt, len(attempts))
	copy(out, attempts)
	return out
}

func (l *Ledger) LatestAttempt(courseID, lessonID, exerciseID string) (domain.ExerciseAttempt, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	attempts := l.attempts[attemptKey(courseID, lessonID, exerciseID)]
	if len(attempts) == 0 {
		return domain.ExerciseAttempt{}, false
	}
	latest := attempts[0]
	for _, a := range attempts[1:] {
		if a.AttemptNumber > latest.AttemptNumber {
			latest = a
		}
	}
	return latest, true
}

// ClearProgressData сбрасывает кэш при разлогине.
func (l *Ledger) ClearProgressData() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.courseProgress = make(map[string]domain.CourseProgress)
	l.lessonProgress = make(map[string]domain.LessonProgress)
	l.attempts = make(map[string][]domain.ExerciseAttempt)
}
