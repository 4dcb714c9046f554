package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"learnplatform/internal/domain"
)

// TokenProvider отдает текущий session token, обычно это session.Store.
type TokenProvider interface {
	Token() (string, bool)
}

type Client struct {
	base   string
	http   *http.Client
	tokens TokenProvider
}

func NewClient(base string, tokens TokenProvider) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{},
		tokens: tokens,
	}
}

// StatusError — не-2xx ответ бэкенда.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Code)
}

// Is позволяет errors.Is(err, domain.ErrNotFound) для 404.
func (e *StatusError) Is(target error) bool {
	return target == domain.ErrNotFound && e.Code == http.StatusNotFound
}

// StatusCode возвращает HTTP-код из err, 0 если это не ответ сервера.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// do выполняет запрос и декодирует JSON-ответ в out (если out != nil).
// Защищенные запросы без токена не уходят в сеть вообще.
func (c *Client) do(ctx context.Context, method, path string, body any, out any, protected bool) error {
	token, ok := c.token()
	if protected && !ok {
		return domain.ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(data, &payload)
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) token() (string, bool) {
	if c.tokens == nil {
		return "", false
	}
	return c.tokens.Token()
}

// === Сессии ===

func (c *Client) SignIn(ctx context.Context, username, password string) (*domain.SignInResponse, error) {
	var resp domain.SignInResponse
	err := c.do(ctx, http.MethodPost, "/signin", map[string]string{
		"username": username,
		"password": password,
	}, &resp, false)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SignUp(ctx context.Context, email, username, password string) (*domain.SignUpResponse, error) {
	var resp domain.SignUpResponse
	err := c.do(ctx, http.MethodPost, "/register", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	}, &resp, false)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil, true)
}

// === Курсы и уроки ===

// CourseInfo — элемент индекса курсов, без тел уроков.
type CourseInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	LessonAmount int    `json:"lessonAmount"`
}

func (c *Client) ListCourses(ctx context.Context) ([]CourseInfo, error) {
	var infos []CourseInfo
	if err := c.do(ctx, http.MethodGet, "/courses", nil, &infos, false); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *Client) GetCourse(ctx context.Context, courseID string) (*domain.Course, error) {
	var course domain.Course
	err := c.do(ctx, http.MethodGet, "/courses/"+url.PathEscape(courseID), nil, &course, false)
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *Client) GetLesson(ctx context.Context, courseID, lessonID string) (*domain.Lesson, error) {
	var lesson domain.Lesson
	path := fmt.Sprintf("/courses/%s/lessons/%s", url.PathEscape(courseID), url.PathEscape(lessonID))
	if err := c.do(ctx, http.MethodGet, path, nil, &lesson, false); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// === Прогресс ===

func (c *Client) GetCourseProgress(ctx context.Context, courseID string) (*domain.CourseProgress, error) {
	var progress domain.CourseProgress
	path := fmt.Sprintf("/courses/%s/progress", url.PathEscape(courseID))
	if err := c.do(ctx, http.MethodGet, path, nil, &progress, true); err != nil {
		return nil, err
	}
	return &progress, nil
}

// InitCourseProgress лениво создает пустую запись прогресса курса.
func (c *Client) InitCourseProgress(ctx context.Context, courseID string) (*domain.CourseProgress, error) {
	var progress domain.CourseProgress
	path := fmt.Sprintf("/courses/%s/progress", url.PathEscape(courseID))
	if err := c.do(ctx, http.MethodPost, path, nil, &progress, true); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (c *Client) GetLessonProgress(ctx context.Context, courseID, lessonID string) (*domain.LessonProgress, error) {
	var progress domain.LessonProgress
	path := fmt.Sprintf("/courses/%s/lessons/%s/progress", url.PathEscape(courseID), url.PathEscape(lessonID))
	if err := c.do(ctx, http.MethodGet, path, nil, &progress, true); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (c *Client) UpdateLessonProgress(ctx context.Context, courseID, lessonID string, status domain.Status) error {
	path := fmt.Sprintf("/courses/%s/lessons/%s/progress", url.PathEscape(courseID), url.PathEscape(lessonID))
	return c.do(ctx, http.MethodPost, path, map[string]domain.Status{"status": status}, nil, true)
}

// AttemptResult — ответ обычного attempt-эндпоинта (без очков).
type AttemptResult struct {
	IsCorrect bool `json:"isCorrect"`
}

func (c *Client) SubmitAttempt(ctx context.Context, courseID, lessonID, exerciseID, answer string) (*AttemptResult, error) {
	var result AttemptResult
	path := fmt.Sprintf("/courses/%s/lessons/%s/exercises/%s/attempt",
		url.PathEscape(courseID), url.PathEscape(lessonID), url.PathEscape(exerciseID))
	err := c.do(ctx, http.MethodPost, path, map[string]string{"answer": answer}, &result, true)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// === Очки ===

func (c *Client) SubmitAttemptWithPoints(ctx context.Context, courseID, lessonID, exerciseID, answer string) (*domain.ExercisePointsResult, error) {
	var result domain.ExercisePointsResult
	path := fmt.Sprintf("/courses/%s/lessons/%s/exercises/%s/points",
		url.PathEscape(courseID), url.PathEscape(lessonID), url.PathEscape(exerciseID))
	err := c.do(ctx, http.MethodPost, path, map[string]string{"answer": answer}, &result, true)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CompleteLesson(ctx context.Context, courseID, lessonID string) (*domain.PointTransaction, error) {
	var tx domain.PointTransaction
	path := fmt.Sprintf("/courses/%s/lessons/%s/complete", url.PathEscape(courseID), url.PathEscape(lessonID))
	if err := c.do(ctx, http.MethodPost, path, nil, &tx, true); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) CompleteCourse(ctx context.Context, courseID string) (*domain.PointTransaction, error) {
	var tx domain.PointTransaction
	path := fmt.Sprintf("/courses/%s/complete", url.PathEscape(courseID))
	if err := c.do(ctx, http.MethodPost, path, nil, &tx, true); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) GetPointsSummary(ctx context.Context, limit int) (*domain.PointsSummary, error) {
	var summary domain.PointsSummary
	path := fmt.Sprintf("/points/summary?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &summary, true); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) GetLessonPoints(ctx context.Context, courseID, lessonID string) (*domain.LessonPointsData, error) {
	var data domain.LessonPointsData
	path := fmt.Sprintf("/courses/%s/lessons/%s/points", url.PathEscape(courseID), url.PathEscape(lessonID))
	if err := c.do(ctx, http.MethodGet, path, nil, &data, true); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) GetLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	path := fmt.Sprintf("/leaderboard?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &entries, false); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) GetDailyStreak(ctx context.Context) (*domain.DailyStreak, error) {
	var streak domain.DailyStreak
	if err := c.do(ctx, http.MethodGet, "/stats/daily-streak", nil, &streak, true); err != nil {
		return nil, err
	}
	return &streak, nil
}

func (c *Client) GetAccuracy(ctx context.Context) (*domain.AccuracyStats, error) {
	var stats domain.AccuracyStats
	if err := c.do(ctx, http.MethodGet, "/stats/accuracy", nil, &stats, true); err != nil {
		return nil, err
	}
	return &stats, nil
}
