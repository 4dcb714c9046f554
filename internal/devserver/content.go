package devserver

import (
	"strings"

	"learnplatform/internal/domain"
)

// Контент курсов статичен и живет в памяти сервера: БД хранит только
// пользовательское состояние (прогресс, попытки, очки).

type ExerciseContent struct {
	domain.Exercise
	Answer string
}

type LessonContent struct {
	ID          string
	Title       string
	Description string
	Exercises   []ExerciseContent
}

type CourseContent struct {
	ID          string
	Name        string
	Description string
	Lessons     []LessonContent
}

type Content struct {
	courses []CourseContent
}

func NewContent(courses []CourseContent) *Content {
	return &Content{courses: courses}
}

func (c *Content) Courses() []CourseContent {
	return c.courses
}

func (c *Content) Course(courseID string) *CourseContent {
	for i := range c.courses {
		if c.courses[i].ID == courseID {
			return &c.courses[i]
		}
	}
	return nil
}

func (c *Content) Lesson(courseID, lessonID string) *LessonContent {
	course := c.Course(courseID)
	if course == nil {
		return nil
	}
	for i := range course.Lessons {
		if course.Lessons[i].ID == lessonID {
			return &course.Lessons[i]
		}
	}
	return nil
}

func (c *Content) Exercise(courseID, lessonID, exerciseID string) *ExerciseContent {
	lesson := c.Lesson(courseID, lessonID)
	if lesson == nil {
		return nil
	}
	for i := range lesson.Exercises {
		if lesson.Exercises[i].ID == exerciseID {
			return &lesson.Exercises[i]
		}
	}
	return nil
}

// CheckAnswer сверяет ответ с ключом без учета регистра и краевых
// пробелов (fill-blank иначе слишком строгий).
func (e *ExerciseContent) CheckAnswer(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(e.Answer))
}

// toDomainLesson отдает урок без ключей ответов.
func (l *LessonContent) toDomainLesson() domain.Lesson {
	exercises := make([]domain.Exercise, 0, len(l.Exercises))
	for _, ex := range l.Exercises {
		exercises = append(exercises, ex.Exercise)
	}
	return domain.Lesson{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Exercises:   exercises,
	}
}
