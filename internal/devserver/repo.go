package devserver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"learnplatform/internal/domain"
)

var (
	ErrUserExists     = errors.New("user already exists")
	ErrRecordNotFound = errors.New("record not found")
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"uniqueIndex;not null"`
	Username  string    `gorm:"uniqueIndex;not null"`
	Password  string    `gorm:"not null"`
	CreatedAt time.Time
}

type LessonProgressRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_user_lesson,priority:1"`
	CourseID       string    `gorm:"uniqueIndex:idx_user_lesson,priority:2"`
	LessonID       string    `gorm:"uniqueIndex:idx_user_lesson,priority:3"`
	Status         domain.Status
	StartedAt      time.Time
	LastAccessedAt time.Time
	CompletedAt    *time.Time
}

type CourseProgressRecord struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID             uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_user_course,priority:1"`
	CourseID           string    `gorm:"uniqueIndex:idx_user_course,priority:2"`
	CourseName         string
	Status             domain.Status
	StartedAt          time.Time
	LastAccessedAt     time.Time
	CompletedAt        *time.Time
	ProgressPercentage int
}

type AttemptRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"type:uuid;index"`
	CourseID      string    `gorm:"index"`
	LessonID      string
	ExerciseID    string
	AttemptNumber int
	Answer        string
	IsCorrect     bool
	AttemptedAt   time.Time
}

type TransactionRecord struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID `gorm:"type:uuid;index"`
	CourseID        string
	LessonID        string
	ExerciseID      string
	TransactionType string
	Points          int
	Description     string
	CreatedAt       time.Time
}

// UserStats — глобальные стрики пользователя: по ответам и по дням.
type UserStats struct {
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CurrentStreak  int
	MaxStreak      int
	DailyStreak    int
	MaxDailyStreak int
	LastActiveDay  string
}

type LessonStats struct {
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CourseID      string    `gorm:"primaryKey"`
	LessonID      string    `gorm:"primaryKey"`
	Points        int
	CurrentStreak int
	MaxStreak     int
}

type LeaderboardRow struct {
	UserID      uuid.UUID
	Username    string
	TotalPoints int
}

// Repository — пользовательское состояние dev-сервера. Две реализации:
// in-memory для тестов и gorm/postgres для локального окружения.
type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	UserByUsername(ctx context.Context, username string) (*User, error)

	LessonProgress(ctx context.Context, userID uuid.UUID, courseID, lessonID string) (*LessonProgressRecord, error)
	SaveLessonProgress(ctx context.Context, rec *LessonProgressRecord) error
	LessonProgressForCourse(ctx context.Context, userID uuid.UUID, courseID string) ([]LessonProgressRecord, error)
	CourseProgress(ctx context.Context, userID uuid.UUID, courseID string) (*CourseProgressRecord, error)
	SaveCourseProgress(ctx context.Context, rec *CourseProgressRecord) error

	CreateAttempt(ctx context.Context, att *AttemptRecord) error
	CountAttempts(ctx context.Context, userID uuid.UUID, courseID, lessonID, exerciseID string) (int, error)
	AttemptTotals(ctx context.Context, userID uuid.UUID) (total, correct int, err error)

	CreateTransaction(ctx context.Context, tx *TransactionRecord) error
	TotalPoints(ctx context.Context, userID uuid.UUID) (int, error)
	RecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]TransactionRecord, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)

	UserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error)
	SaveUserStats(ctx context.Context, s *UserStats) error
	LessonStats(ctx context.Context, userID uuid.UUID, courseID, lessonID string) (*LessonStats, error)
	SaveLessonStats(ctx context.Context, s *LessonStats) error
}

// MemoryRepository — реализация на картах, для httptest и оффлайн-режима.
type MemoryRepository struct {
	mu             sync.Mutex
	users          map[string]*User
	lessonProgress map[string]*LessonProgressRecord
	courseProgress map[string]*CourseProgressRecord
	attempts       []AttemptRecord
	transactions   []TransactionRecord
	userStats      map[uuid.UUID]*UserStats
	lessonStats    map[string]*LessonStats
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:          make(map[string]*User),
		lessonProgress: make(map[string]*LessonProgressRecord),
		courseProgress: make(map[string]*CourseProgressRecord),
		userStats:      make(map[uuid.UUID]*UserStats),
		lessonStats:    make(map[string]*LessonStats),
	}
}

func lpKey(userID uuid.UUID, courseID, lessonID string) string {
	return userID.String() + ":" + courseID + ":" + lessonID
}

func cpKey(userID uuid.UUID, courseID string) string {
	return userID.String() + ":" + courseID
}

func (r *MemoryRepository) CreateUser(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrUserExists
		}
	}
	copied := *u
	r.users[u.Username] = &copied
	return nil
}

func (r *MemoryRepository) UserByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *MemoryRepository) LessonProgress(ctx context.Context, userID uuid.UUID, courseID, lessonID string) (*LessonProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.lessonProgress[lpKey(userID, courseID, lessonID)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *MemoryRepository) SaveLessonProgress(ctx context.Context, rec *LessonProgressRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *rec
	r.lessonProgress[lpKey(rec.UserID, rec.CourseID, rec.LessonID)] = &copied
	return nil
}

func (r *MemoryRepository) LessonProgressForCourse(ctx context.Context, userID uuid.UUID, courseID string) ([]LessonProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LessonProgressRecord
	for _, rec := range r.lessonProgress {
		if rec.UserID == userID && rec.CourseID == courseID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *MemoryRepository) CourseProgress(ctx context.Context, userID uuid.UUID, courseID string) (*CourseProgressRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.courseProgress[cpKey(userID, courseID)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	copied := *rec
	return &copied, nil
}

func (r *MemoryRepository) SaveCourseProgress(ctx context.Context, rec *CourseProgressRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *rec
	r.courseProgress[cpKey(rec.UserID, rec.CourseID)] = &copied
	return nil
}

func (r *MemoryRepository) CreateAttempt(ctx context.Context, att *AttemptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, *att)
	return nil
}

func (r *MemoryRepository) CountAttempts(ctx context.Context, userID uuid.UUID, courseID, lessonID, exerciseID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.attempts {
		if a.UserID == userID && a.CourseID == courseID && a.LessonID == lessonID && a.ExerciseID == exerciseID {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) AttemptTotals(ctx context.Context, userID uuid.UUID) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total, correct := 0, 0
	for _, a := range r.attempts {
		if a.UserID == userID {
			total++
			if a.IsCorrect {
				correct++
			}
		}
	}
	return total, correct, nil
}

func (r *MemoryRepository) CreateTransaction(ctx context.Context, tx *TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions = append(r.transactions, *tx)
	return nil
}

func (r *MemoryRepository) TotalPoints(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			total += tx.Points
		}
	}
	return total, nil
}

func (r *MemoryRepository) RecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]TransactionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TransactionRecord
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	totals := make(map[uuid.UUID]int)
	for _, tx := range r.transactions {
		totals[tx.UserID] += tx.Points
	}

	var rows []LeaderboardRow
	for _, u := range r.users {
		rows = append(rows, LeaderboardRow{UserID: u.ID, Username: u.Username, TotalPoints: totals[u.ID]})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TotalPoints > rows[j].TotalPoints })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *MemoryRepository) UserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.userStats[userID]; ok {
		copied := *s
		return &copied, nil
	}
	return &UserStats{UserID: userID}, nil
}

func (r *MemoryRepository) SaveUserStats(ctx context.Context, s *UserStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.userStats[s.UserID] = &copied
	return nil
}

func (r *MemoryRepository) LessonStats(ctx context.Context, userID uuid.UUID, courseID, lessonID string) (*LessonStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.lessonStats[lpKey(userID, courseID, lessonID)]; ok {
		copied := *s
		return &copied, nil
	}
	return &LessonStats{UserID: userID, CourseID: courseID, LessonID: lessonID}, nil
}

func (r *MemoryRepository) SaveLessonStats(ctx context.Context, s *LessonStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.lessonStats[lpKey(s.UserID, s.CourseID, s.LessonID)] = &copied
	return nil
}
