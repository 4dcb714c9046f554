package points

import (
	"context"
	"log"
	"sync"

	"learnplatform/internal/api"
	"learnplatform/internal/domain"
)

// Ledger зеркалит серверные очки/стрики. Значения клиент не считает
// никогда: сервер атомарно возвращает дельту, стрик и точность, здесь
// только кэш и pass-through. Повторные вызовы Complete* не
// дедуплицируются — за единственный вызов на переход отвечает
// оркестратор.
type Ledger struct {
	api *api.Client

	mu           sync.RWMutex
	summary      *domain.PointsSummary
	lessonPoints map[string]domain.LessonPointsData
	leaderboard  []domain.LeaderboardEntry
}

func NewLedger(client *api.Client) *Ledger {
	return &Ledger{
		api:          client,
		lessonPoints: make(map[string]domain.LessonPointsData),
	}
}

func lessonKey(courseID, lessonID string) string {
	return courseID + "-" + lessonID
}

// FetchSummary — read-path: сбой логируется и деградирует до nil.
func (l *Ledger) FetchSummary(ctx context.Context, limit int) *domain.PointsSummary {
	summary, err := l.api.GetPointsSummary(ctx, limit)
	if err != nil {
		log.Printf("Failed to fetch points summary: %v", err)
		return nil
	}
	l.mu.Lock()
	l.summary = summary
	l.mu.Unlock()
	return summary
}

func (l *Ledger) FetchLessonPoints(ctx context.Context, courseID, lessonID string) *domain.LessonPointsData {
	data, err := l.api.GetLessonPoints(ctx, courseID, lessonID)
	if err != nil {
		log.Printf("Failed to fetch lesson points for %s/%s: %v", courseID, lessonID, err)
		return nil
	}
	l.mu.Lock()
	l.lessonPoints[lessonKey(courseID, lessonID)] = *data
	l.mu.Unlock()
	return data
}

// SubmitExerciseAttempt шлет ответ на points-эндпоинт и после успеха
// освежает очки урока зависимым запросом.
func (l *Ledger) SubmitExerciseAttempt(ctx context.Context, courseID, lessonID, exerciseID, answer string) (*domain.ExercisePointsResult, error) {
	result, err := l.api.SubmitAttemptWithPoints(ctx, courseID, lessonID, exerciseID, answer)
	if err != nil {
		return nil, err
	}

	l.FetchLessonPoints(ctx, courseID, lessonID)
	return result, nil
}

func (l *Ledger) CompleteLesson(ctx context.Context, courseID, lessonID string) (*domain.PointTransaction, error) {
	tx, err := l.api.CompleteLesson(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	l.FetchLessonPoints(ctx, courseID, lessonID)
	l.FetchSummary(ctx, 5)
	return tx, nil
}

func (l *Ledger) CompleteCourse(ctx context.Context, courseID string) (*domain.PointTransaction, error) {
	tx, err := l.api.CompleteCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	l.FetchSummary(ctx, 5)
	return tx, nil
}

func (l *Ledger) FetchLeaderboard(ctx context.Context, limit int) []domain.LeaderboardEntry {
	entries, err := l.api.GetLeaderboard(ctx, limit)
	if err != nil {
		log.Printf("Failed to fetch leaderboard: %v", err)
		return nil
	}
	l.mu.Lock()
	l.leaderboard = entries
	l.mu.Unlock()
	return entries
}

func (l *Ledger) FetchDailyStreak(ctx context.Context) *domain.DailyStreak {
	streak, err := l.api.GetDailyStreak(ctx)
	if err != nil {
		log.Printf("Failed to fetch daily streak: %v", err)
		return nil
	}
	return streak
}

func (l *Ledger) FetchAccuracy(ctx context.Context) *domain.AccuracyStats {
	stats, err := l.api.GetAccuracy(ctx)
	if err != nil {
		log.Printf("Failed to fetch accuracy stats: %v", err)
		return nil
	}
	return stats
}

func (l *Ledger) TotalPoints() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.summary == nil {
		return 0
	}
	return l.summary.TotalPoints
}

func (l *Ledger) CurrentStreak() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.summary == nil {
		return 0
	}
	return l.summary.CurrentStreak
}

func (l *Ledger) MaxStreak() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.summary == nil {
		return 0
	}
	return l.summary.MaxStreak
}

func (l *Ledger) LessonPoints(courseID, lessonID string) (domain.LessonPointsData, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	data, ok := l.lessonPoints[lessonKey(courseID, lessonID)]
	return data, ok
}

func (l *Ledger) LessonStreak(courseID, lessonID string) int {
	data, ok := l.LessonPoints(courseID, lessonID)
	if !ok {
		return 0
	}
	return data.CurrentStreak
}

func (l *Ledger) Leaderboard() []domain.LeaderboardEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.LeaderboardEntry, len(l.leaderboard))
	copy(out, l.leaderboard)
	return out
}

// ClearPointsData сбрасывает кэш при разлогине.
func (l *Ledger) ClearPointsData() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summary = nil
	l.lessonPoints = make(map[string]domain.LessonPointsData)
	l.leaderboard = nil
}
