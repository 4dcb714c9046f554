package domain

// Типы упражнений, которые отдает бэкенд.
const (
	ExerciseMultipleChoice = "multiple-choice"
	ExerciseTrueFalse      = "true-false"
	ExerciseFillBlank      = "fill-blank"
)

type Course struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	LessonAmount int      `json:"lessonAmount"`
	Lessons      []Lesson `json:"lessons,omitempty"` // nil, пока курс не загружен целиком
}

type Lesson struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Exercises   []Exercise `json:"exercises"`
}

// Exercise неизменяем после загрузки. Options заполнен только для
// multiple-choice, Answer сервер в payload не кладет.
type Exercise struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// LastExerciseID возвращает id последнего упражнения урока.
func (l *Lesson) LastExerciseID() string {
	if l == nil || len(l.Exercises) == 0 {
		return ""
	}
	return l.Exercises[len(l.Exercises)-1].ID
}

// ExerciseIndex ищет упражнение по id, -1 если его нет в уроке.
func (l *Lesson) ExerciseIndex(exerciseID string) int {
	if l == nil {
		return -1
	}
	for i, ex := range l.Exercises {
		if ex.ID == exerciseID {
			return i
		}
	}
	return -1
}
