package domain

import "time"

type PointTransaction struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	CourseID        string    `json:"courseId"`
	LessonID        string    `json:"lessonId,omitempty"`
	ExerciseID      string    `json:"exerciseId,omitempty"`
	TransactionType string    `json:"transactionType"`
	Points          int       `json:"points"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"createdAt"`
}

type PointsSummary struct {
	TotalPoints        int                `json:"totalPoints"`
	CurrentStreak      int                `json:"currentStreak"`
	MaxStreak          int                `json:"maxStreak"`
	RecentTransactions []PointTransaction `json:"recentTransactions,omitempty"`
}

type LessonPointsData struct {
	CourseID      string `json:"courseId"`
	LessonID      string `json:"lessonId"`
	TotalPoints   int    `json:"totalPoints"`
	CurrentStreak int    `json:"currentStreak"`
	MaxStreak     int    `json:"maxStreak"`
}

// ExercisePointsResult — атомарный ответ points-эндпоинта, клиент
// очки не пересчитывает, только зеркалит.
type ExercisePointsResult struct {
	IsCorrect       bool              `json:"isCorrect"`
	Points          int               `json:"points"`
	Transaction     *PointTransaction `json:"transaction,omitempty"`
	CurrentStreak   int               `json:"currentStreak"`
	MaxStreak       int               `json:"maxStreak"`
	AccuracyRate    float64           `json:"accuracyRate"`
	TotalAttempts   int               `json:"totalAttempts"`
	CorrectAttempts int               `json:"correctAttempts"`
}

type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	TotalPoints int    `json:"totalPoints"`
	Rank        int    `json:"rank"`
}

type DailyStreak struct {
	CurrentStreak int    `json:"currentStreak"`
	MaxStreak     int    `json:"maxStreak"`
	LastActiveDay string `json:"lastActiveDay"`
}

type AccuracyStats struct {
	TotalAttempts   int     `json:"totalAttempts"`
	CorrectAttempts int     `json:"correctAttempts"`
	AccuracyRate    float64 `json:"accuracyRate"`
}
