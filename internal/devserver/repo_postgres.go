package devserver

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostgresRepository — gorm-реализация для локального окружения.
type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgresRepository(db *gorm.DB) (*PostgresRepository, error) {
	err := db.AutoMigrate(
		&User{},
		&LessonProgressRecord{},
		&CourseProgressRecord{},
		&AttemptRecord{},
		&TransactionRecord{},
		&UserStats{},
		&LessonStats{},
	)
	if err != nil {
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, u *User) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&User{}).
		Where("username = ? OR email = ?", u.Username, u.Email).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrUserExists
	}
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *PostgresRepository) UserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) LessonProgress(ctx context.Context, userID uuid.UUID, courseID, lessonID string) (*LessonProgressRecord, error) {
	var rec LessonProgressRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND lesson_id = ?", userID, courseID, lessonID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PostgresRepository) SaveLessonProgress(ctx context.Context, rec *LessonProgressRecord) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *PostgresRepository) LessonProgressForCourse(ctx context.Context, userID uuid.UUID, courseID string) ([]LessonProgressRecord, error) {
	var recs []LessonProgressRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Find(&recs).Error
	return recs, err
}

func (r *PostgresRepository) CourseProgress(ctx context.Context, userID uuid.UUID, courseID string) (*CourseProgressRecord, error) {
	var rec CourseProgressRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PostgresRepository) SaveCourseProgress(ctx context.Context, rec *CourseProgressRecord) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *PostgresRepository) CreateAttempt(ctx context.Context, att *AttemptRecord) error {
	return r.db.WithContext(ctx).Create(att).Error
}

func (r *PostgresRepository) CountAttempts(ctx context.Context, userID uuid.UUID, courseID, lessonID, exerciseID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&AttemptRecord{}).
		Where("user_id = ? AND course_id = ? AND lesson_id = ? AND exercise_id = ?", userID, courseID, lessonID, exerciseID).
		Count(&count).Error
	return int(count), err
}

func (r *PostgresRepository) AttemptTotals(ctx context.Context, userID uuid.UUID) (int, int, error) {
	var total, correct int64
	err := r.db.WithContext(ctx).Model(&AttemptRecord{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&AttemptRecord{}).
		Where("user_id = ? AND is_correct = ?", userID, true).
		Count(&correct).Error
	return int(total), int(correct), err
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *TransactionRecord) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *PostgresRepository) TotalPoints(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&TransactionRecord{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	return int(total), err
}

func (r *PostgresRepository) RecentTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]TransactionRecord, error) {
	var txs []TransactionRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

func (r *PostgresRepository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := r.db.WithContext(ctx).Model(&User{}).
		Select("users.id as user_id, users.username, COALESCE(SUM(transaction_records.points), 0) as total_points").
		Joins("LEFT JOIN transaction_records ON transaction_records.user_id = users.id").
		Group("users.id, users.username").
		Order("total_points desc").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *PostgresRepository) UserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	var s UserStats
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &UserStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) SaveUserStats(ctx context.Context, s *UserStats) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *PostgresRepository) LessonStats(ctx context.Context, userID uuid.UUID, courseID, lessonID string) (*LessonStats, error) {
	var s LessonStats
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND lesson_id = ?", userID, courseID, lessonID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &LessonStats{UserID: userID, CourseID: courseID, LessonID: lessonID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) SaveLessonStats(ctx context.Context, s *LessonStats) error {
	return r.db.WithContext(ctx).Save(s).Error
}
