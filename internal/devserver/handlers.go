package devserver

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"learnplatform/internal/domain"
)

// Начисления считает только сервер, клиент их зеркалит.
const (
	pointsPerCorrect     = 10
	streakBonus          = 5
	streakBonusThreshold = 3
	lessonBonus          = 50
	courseBonus          = 200
)

type Server struct {
	content *Content
	repo    Repository
	tokens  *TokenManager
	hasher  *PasswordHasher
}

func NewServer(content *Content, repo Repository, tokens *TokenManager) *Server {
	return &Server{
		content: content,
		repo:    repo,
		tokens:  tokens,
		hasher:  NewPasswordHasher(),
	}
}

type registerReq struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type signinReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	user := &User{
		ID:        uuid.New(),
		Email:     req.Email,
		Username:  req.Username,
		Password:  hash,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateUser(c, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username or email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"username": user.Username, "email": user.Email})
}

func (s *Server) SignIn(c *gin.Context) {
	var req signinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.repo.UserByUsername(c, req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err := s.hasher.Compare(user.Password, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, expiresAt, err := s.tokens.Generate(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username":  user.Username,
		"email":     user.Email,
		"token":     token,
		"expiresAt": expiresAt,
	})
}

func (s *Server) Logout(c *gin.Context) {
	// Токены stateless, серверу чистить нечего.
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// === Контент ===

func (s *Server) ListCourses(c *gin.Context) {
	out := make([]gin.H, 0, len(s.content.Courses()))
	for _, course := range s.content.Courses() {
		out = append(out, gin.H{
			"id":           course.ID,
			"name":         course.Name,
			"description":  course.Description,
			"lessonAmount": len(course.Lessons),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) GetCourse(c *gin.Context) {
	course := s.content.Course(c.Param("courseId"))
	if course == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
		return
	}

	lessons := make([]domain.Lesson, 0, len(course.Lessons))
	for i := range course.Lessons {
		lessons = append(lessons, course.Lessons[i].toDomainLesson())
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           course.ID,
		"name":         course.Name,
		"description":  course.Description,
		"lessonAmount": len(course.Lessons),
		"lessons":      lessons,
	})
}

func (s *Server) GetLesson(c *gin.Context) {
	lesson := s.content.Lesson(c.Param("courseId"), c.Param("lessonId"))
	if lesson == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lesson not found"})
		return
	}
	c.JSON(http.StatusOK, lesson.toDomainLesson())
}

// === Прогресс ===

func (s *Server) GetLessonProgress(c *gin.Context) {
	user := currentUser(c)
	rec, err := s.repo.LessonProgress(c, user.ID, c.Param("courseId"), c.Param("lessonId"))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "progress not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lessonProgressJSON(rec))
}

func (s *Server) UpdateLessonProgress(c *gin.Context) {
	user := currentUser(c)
	courseID := c.Param("courseId")
	lessonID := c.Param("lessonId")

	if s.content.Lesson(courseID, lessonID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lesson not found"})
		return
	}

	var req struct {
		Status domain.Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	now := time.Now()
	rec, err := s.repo.LessonProgress(c, user.ID, courseID, lessonID)
	if errors.Is(err, ErrRecordNotFound) {
		rec = &LessonProgressRecord{
			ID:        uuid.New(),
			UserID:    user.ID,
			CourseID:  courseID,
			LessonID:  lessonID,
			Status:    domain.StatusNotStarted,
			StartedAt: now,
		}
		err = nil
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// ЗАЩИТА: статус назад не откатываем, только время доступа.
	if !req.Status.Before(rec.Status) {
		rec.Status = req.Status
		if req.Status == domain.StatusCompleted && rec.CompletedAt == nil {
			completed := now
			rec.CompletedAt = &completed
		}
	}
	rec.LastAccessedAt = now

	if err := s.repo.SaveLessonProgress(c, rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := s.recalcCourseProgress(c, user.ID, courseID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, lessonProgressJSON(rec))
}

// recalcCourseProgress пересчитывает агрегат курса из записей уроков.
func (s *Server) recalcCourseProgress(c *gin.Context, userID uuid.UUID, courseID string) error {
	course := s.content.Course(courseID)
	if course == nil || len(course.Lessons) == 0 {
		return nil
	}

	recs, err := s.repo.LessonProgressForCourse(c, userID, courseID)
	if err != nil {
		return err
	}

	completed := 0
	started := false
	for _, rec := range recs {
		if rec.Status == domain.StatusCompleted {
			completed++
		}
		if rec.Status != domain.StatusNotStarted {
			started = true
		}
	}

	percent := int(math.Round(float64(completed) / float64(len(course.Lessons)) * 100))
	now := time.Now()

	cp, err := s.repo.CourseProgress(c, userID, courseID)
	if errors.Is(err, ErrRecordNotFound) {
		cp = &CourseProgressRecord{
			ID:         uuid.New(),
			UserID:     userID,
			CourseID:   courseID,
			CourseName: course.Name,
			Status:     domain.StatusNotStarted,
			StartedAt:  now,
		}
		err = nil
	}
	if err != nil {
		return err
	}

	cp.ProgressPercentage = percent
	cp.LastAccessedAt = now
	switch {
	case percent >= 100:
		if cp.Status != domain.StatusCompleted {
			completedAt := now
			cp.CompletedAt = &completedAt
		}
		cp.Status = domain.StatusCompleted
	case started:
		if cp.Status != domain.StatusCompleted {
			cp.Status = domain.StatusInProgress
		}
	}

	return s.repo.SaveCourseProgress(c, cp)
}

func (s *Server) GetCourseProgress(c *gin.Context) {
	user := currentUser(c)
	rec, err := s.repo.CourseProgress(c, user.ID, c.Param("courseId"))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "progress not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, courseProgressJSON(rec))
}

// InitCourseProgress лениво создает пустую запись прогресса курса.
func (s *Server) InitCourseProgress(c *gin.Context) {
	user := currentUser(c)
	courseID := c.Param("courseId")

	course := s.content.Course(courseID)
	if course == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
		return
	}

	rec, err := s.repo.CourseProgress(c, user.ID, courseID)
	if errors.Is(err, ErrRecordNotFound) {
		now := time.Now()
		rec = &CourseProgressRecord{
			ID:             uuid.New(),
			UserID:         user.ID,
			CourseID:       courseID,
			CourseName:     course.Name,
			Status:         domain.StatusNotStarted,
			StartedAt:      now,
			LastAccessedAt: now,
		}
		if err := s.repo.SaveCourseProgress(c, rec); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, courseProgressJSON(rec))
}

// === Попытки и очки ===

func (s *Server) SubmitAttempt(c *gin.Context) {
	user := currentUser(c)
	courseID := c.Param("courseId")
	lessonID := c.Param("lessonId")
	exerciseID := c.Param("exerciseId")

	exercise := s.content.Exercise(courseID, lessonID, exerciseID)
	if exercise == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exercise not found"})
		return
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isCorrect := exercise.CheckAnswer(req.Answer)
	if err := s.recordAttempt(c, user.ID, courseID, lessonID, exerciseID, req.Answer, isCorrect); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"isCorrect": isCorrect})
}

func (s *Server) SubmitAttemptWithPoints(c *gin.Context) {
	user := currentUser(c)
	courseID := c.Param("courseId")
	lessonID := c.Param("lessonId")
	exerciseID := c.Param("exerciseId")

	exercise := s.content.Exercise(courseID, lessonID, exerciseID)
	if exercise == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exercise not found"})
		return
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	isCorrect := exercise.CheckAnswer(req.Answer)
	if err := s.recordAttempt(c, user.ID, courseID, lessonID, exerciseID, req.Answer, isCorrect); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Глобальные и поурочные стрики.
	stats, err := s.repo.UserStats(c, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if isCorrect {
		stats.CurrentStreak++
		if stats.CurrentStreak > stats.MaxStreak {
			stats.MaxStreak = stats.CurrentStreak
		}
	} else {
		stats.CurrentStreak = 0
	}
	advanceDailyStreak(stats, time.Now())
	if err := s.repo.SaveUserStats(c, stats); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	lessonStats, err := s.repo.LessonStats(c, user.ID, courseID, lessonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	points := 0
	var txJSON *domain.PointTransaction
	if isCorrect {
		points = pointsPerCorrect
		if stats.CurrentStreak >= streakBonusThreshold {
			points += streakBonus
		}

		tx := &TransactionRecord{
			ID:              uuid.New(),
			UserID:          user.ID,
			CourseID:        courseID,
			LessonID:        lessonID,
			ExerciseID:      exerciseID,
			TransactionType: "exercise_correct",
			Points:          points,
			Description:     "Correct answer",
			CreatedAt:       time.Now(),
		}
		if err := s.repo.CreateTransaction(c, tx); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		t := transactionJSON(tx)
		txJSON = &t

		lessonStats.Points += points
		lessonStats.CurrentStreak++
		if lessonStats.CurrentStreak > lessonStats.MaxStreak {
			lessonStats.MaxStreak = lessonStats.CurrentStreak
		}
	} else {
		lessonStats.CurrentStreak = 0
	}
	if err := s.repo.SaveLessonStats(c, lessonStats); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	total, correct, err := s.repo.AttemptTotals(c, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}

	c.JSON(http.StatusOK, domain.ExercisePointsResult{
		IsCorrect:       isCorrect,
		Points:          points,
		Transaction:     txJSON,
		CurrentStreak:   stats.CurrentStreak,
		MaxStreak:       stats.MaxStreak,
		AccuracyRate:    accuracy,
		TotalAttempts:   total,
		CorrectAttempts: correct,
	})
}

func (s *Server) recordAttempt(c *gin.Context, userID uuid.UUID, courseID, lessonID, exerciseID, answer string, isCorrect bool) error {
	count, err := s.repo.CountAttempts(c, userID, courseID, lessonID, exerciseID)
	if err != nil {
		return err
	}
	return s.repo.CreateAttempt(c, &AttemptRecord{
		ID:            uuid.New(),
		UserID:        userID,
		CourseID:      courseID,
		LessonID:      lessonID,
		ExerciseID:    exerciseID,
		AttemptNumber: count + 1,
		Answer:        answer,
		IsCorrect:     isCorrect,
		AttemptedAt:   time.Now(),
	})
}

func (s *Server) CompleteLesson(c *gin.Context) {
	user := currentUser(c)
	courseID := c.Param("courseId")
	lessonID := c.Param("lessonId")

	if s.content.Lesson(courseID, lessonID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lesson not found"})
		return
	}

	tx := &TransactionRecord{
		ID:              uuid.New(),
		UserID:          user.ID,
		CourseID:        courseID,
		LessonID:        lessonID,
		TransactionType: "lesson_complete",
		Points:          lessonBonus,
		Description:     "Lesson completed",
		CreatedAt:       time.Now(),
	}
	if err := s.repo.CreateTransaction(c, tx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	lessonStats, err := s.repo.LessonStats(c, user.ID, courseID, lessonID)
	if err == nil {
		lessonStats.Points += lessonBonus
		_ = s.repo.SaveLessonStats(c, lessonStats)
	}

	c.JSON(http.StatusOK, transactionJSON(tx))
}

func (s *Server) CompleteCourse(c *gin.Context) {
	user := currentUser(c)
	courseID := c.Param("courseId")

	if s.content.Course(courseID) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
		return
	}

	tx := &TransactionRecord{
		ID:              uuid.New(),
		UserID:          user.ID,
		CourseID:        courseID,
		TransactionType: "course_complete",
		Points:          courseBonus,
		Description:     "Course completed",
		CreatedAt:       time.Now(),
	}
	if err := s.repo.CreateTransaction(c, tx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, transactionJSON(tx))
}

// === Агрегаты ===

func (s *Server) PointsSummary(c *gin.Context) {
	user := currentUser(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	total, err := s.repo.TotalPoints(c, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	stats, err := s.repo.UserStats(c, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	recent, err := s.repo.RecentTransactions(c, user.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	txs := make([]domain.PointTransaction, 0, len(recent))
	for i := range recent {
		txs = append(txs, transactionJSON(&recent[i]))
	}

	c.JSON(http.StatusOK, domain.PointsSummary{
		TotalPoints:        total,
		CurrentStreak:      stats.CurrentStreak,
		MaxStreak:          stats.MaxStreak,
		RecentTransactions: txs,
	})
}

func (s *Server) LessonPoints(c *gin.Context) {
	user := currentUser(c)
	courseID := c.Param("courseId")
	lessonID := c.Param("lessonId")

	stats, err := s.repo.LessonStats(c, user.ID, courseID, lessonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, domain.LessonPointsData{
		CourseID:      courseID,
		LessonID:      lessonID,
		TotalPoints:   stats.Points,
		CurrentStreak: stats.CurrentStreak,
		MaxStreak:     stats.MaxStreak,
	})
}

func (s *Server) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	rows, err := s.repo.Leaderboard(c, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      row.UserID.String(),
			Username:    row.Username,
			TotalPoints: row.TotalPoints,
			Rank:        i + 1,
		})
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) DailyStreak(c *gin.Context) {
	user := currentUser(c)
	stats, err := s.repo.UserStats(c, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, domain.DailyStreak{
		CurrentStreak: stats.DailyStreak,
		MaxStreak:     stats.MaxDailyStreak,
		LastActiveDay: stats.LastActiveDay,
	})
}

func (s *Server) Accuracy(c *gin.Context) {
	user := currentUser(c)
	total, correct, err := s.repo.AttemptTotals(c, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rate := 0.0
	if total > 0 {
		rate = float64(correct) / float64(total)
	}
	c.JSON(http.StatusOK, domain.AccuracyStats{
		TotalAttempts:   total,
		CorrectAttempts: correct,
		AccuracyRate:    rate,
	})
}

// === Вспомогательное ===

const dayLayout = "2006-01-02"

func advanceDailyStreak(stats *UserStats, now time.Time) {
	today := now.Format(dayLayout)
	if stats.LastActiveDay == today {
		return
	}
	yesterday := now.AddDate(0, 0, -1).Format(dayLayout)
	if stats.LastActiveDay == yesterday {
		stats.DailyStreak++
	} else {
		stats.DailyStreak = 1
	}
	if stats.DailyStreak > stats.MaxDailyStreak {
		stats.MaxDailyStreak = stats.DailyStreak
	}
	stats.LastActiveDay = today
}

func lessonProgressJSON(rec *LessonProgressRecord) domain.LessonProgress {
	return domain.LessonProgress{
		ID:             rec.ID.String(),
		UserID:         rec.UserID.String(),
		CourseID:       rec.CourseID,
		LessonID:       rec.LessonID,
		Status:         rec.Status,
		StartedAt:      rec.StartedAt,
		LastAccessedAt: rec.LastAccessedAt,
		CompletedAt:    rec.CompletedAt,
	}
}

func courseProgressJSON(rec *CourseProgressRecord) domain.CourseProgress {
	return domain.CourseProgress{
		ID:                 rec.ID.String(),
		UserID:             rec.UserID.String(),
		CourseID:           rec.CourseID,
		CourseName:         rec.CourseName,
		Status:             rec.Status,
		StartedAt:          rec.StartedAt,
		LastAccessedAt:     rec.LastAccessedAt,
		CompletedAt:        rec.CompletedAt,
		ProgressPercentage: rec.ProgressPercentage,
	}
}

func transactionJSON(tx *TransactionRecord) domain.PointTransaction {
	return domain.PointTransaction{
		ID:              tx.ID.String(),
		UserID:          tx.UserID.String(),
		CourseID:        tx.CourseID,
		LessonID:        tx.LessonID,
		ExerciseID:      tx.ExerciseID,
		TransactionType: tx.TransactionType,
		Points:          tx.Points,
		Description:     tx.Description,
		CreatedAt:       tx.CreatedAt,
	}
}
