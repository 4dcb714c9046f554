package domain

import "time"

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// rank задает порядок статусов, движение назад запрещено.
func (s Status) rank() int {
	switch s {
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return 0
	}
}

// Before сообщает, стоит ли статус раньше other в цепочке
// not_started -> in_progress -> completed.
func (s Status) Before(other Status) bool {
	return s.rank() < other.rank()
}

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type LessonProgress struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	CourseID       string     `json:"courseId"`
	LessonID       string     `json:"lessonId"`
	Status         Status     `json:"status"`
	StartedAt      time.Time  `json:"startedAt"`
	LastAccessedAt time.Time  `json:"lastAccessedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
}

type CourseProgress struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	CourseID           string     `json:"courseId"`
	CourseName         string     `json:"courseName"`
	Status             Status     `json:"status"`
	StartedAt          time.Time  `json:"startedAt"`
	LastAccessedAt     time.Time  `json:"lastAccessedAt"`
	CompletedAt        *time.Time `json:"completedAt"`
	ProgressPercentage int        `json:"progressPercentage"`
}

// ExerciseAttempt — запись истории попыток, только добавляется.
type ExerciseAttempt struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	CourseID      string    `json:"courseId"`
	LessonID      string    `json:"lessonId"`
	ExerciseID    string    `json:"exerciseId"`
	AttemptNumber int       `json:"attemptNumber"`
	Answer        string    `json:"answer"`
	IsCorrect     bool      `json:"isCorrect"`
	AttemptedAt   time.Time `json:"attemptedAt"`
}
