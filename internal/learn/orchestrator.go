package learn

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"learnplatform/internal/catalog"
	"learnplatform/internal/domain"
	"learnplatform/internal/exercise"
	"learnplatform/internal/lesson"
	"learnplatform/internal/points"
	"learnplatform/internal/progress"
	"learnplatform/internal/session"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoadingCourse State = "loading-course"
	StateLoadingLesson State = "loading-lesson"
	StateReady         State = "ready"
	StateSubmitting    State = "submitting"
	StateAdvancing     State = "advancing"
)

// Route — идентификаторы из текущего маршрута страницы.
type Route struct {
	CourseID   string
	LessonID   string
	ExerciseID string
}

// Orchestrator — тонкая склейка page-level workflow: держит ссылки на
// все ledger-ы/кэши (никаких глобальных синглтонов) и гоняет навигацию
// курс -> урок -> упражнение. Каждое навигационное действие штампуется
// поколением: результат действия, чье поколение уже не текущее,
// отбрасывается до записи в кэш.
type Orchestrator struct {
	session *session.Store
	catalog *catalog.Catalog
	lessons *lesson.Cache
	cursor  *exercise.Cursor
	prog    *progress.Ledger
	points  *points.Ledger

	gen atomic.Uint64

	mu             sync.Mutex
	state          State
	awardedLessons map[string]bool
	awardedCourses map[string]bool
}

func NewOrchestrator(
	sess *session.Store,
	cat *catalog.Catalog,
	lessons *lesson.Cache,
	cursor *exercise.Cursor,
	prog *progress.Ledger,
	pts *points.Ledger,
) *Orchestrator {
	return &Orchestrator{
		session:        sess,
		catalog:        cat,
		lessons:        lessons,
		cursor:         cursor,
		prog:           prog,
		points:         pts,
		state:          StateUninitialized,
		awardedLessons: make(map[string]bool),
		awardedCourses: make(map[string]bool),
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// stale сообщает, что действие с поколением g перегнало более новое.
func (o *Orchestrator) stale(g uint64) bool {
	return o.gen.Load() != g
}

// Initialize гидрирует состояние из маршрута: курсы -> курс -> урок ->
// упражнение, в этом порядке. Сбой внешнего шага обрывает более
// глубокую гидрацию.
func (o *Orchestrator) Initialize(ctx context.Context, route Route) error {
	g := o.gen.Add(1)
	o.setState(StateLoadingCourse)

	if _, err := o.catalog.FetchCourses(ctx); err != nil {
		o.setState(StateUninitialized)
		return err
	}
	if o.stale(g) {
		return nil
	}

	// Сводку очков тянем best-effort, навигацию она не блокирует.
	o.points.FetchSummary(ctx, 5)

	if route.CourseID == "" {
		o.setState(StateReady)
		return nil
	}

	course, err := o.catalog.FetchCourseData(ctx, route.CourseID)
	if err != nil {
		o.setState(StateUninitialized)
		return err
	}
	if o.stale(g) {
		return nil
	}
	o.catalog.StoreCourse(*course)
	o.prog.FetchCourseProgress(ctx, course.ID)
	o.lessons.SeedLessons(course.ID, course.Lessons)

	// Запись прогресса курса заводится лениво при первом заходе.
	if cp, ok := o.prog.CourseProgress(course.ID); !ok || cp.ID == "" {
		if _, err := o.prog.InitCourseProgress(ctx, course.ID); err != nil {
			log.Printf("Failed to init course progress for %s: %v", course.ID, err)
		}
	}

	if route.LessonID == "" {
		o.setState(StateReady)
		return nil
	}

	o.setState(StateLoadingLesson)
	loaded, err := o.lessons.FetchLessonData(ctx, route.CourseID, route.LessonID)
	if err != nil {
		o.setState(StateUninitialized)
		return err
	}
	if o.stale(g) {
		return nil
	}
	o.lessons.StoreLesson(route.CourseID, *loaded)
	o.lessons.SetCurrent(route.CourseID, route.LessonID)
	o.prog.FetchLessonProgress(ctx, route.CourseID, route.LessonID)
	o.points.FetchLessonPoints(ctx, route.CourseID, route.LessonID)
	if o.stale(g) {
		return nil
	}

	if route.ExerciseID != "" && loaded.ExerciseIndex(route.ExerciseID) >= 0 {
		o.cursor.SetCurrentExercise(route.ExerciseID)
	} else {
		o.pointFirstExercise(loaded)
	}

	o.setState(StateReady)
	return nil
}

// SelectLesson загружает урок, помечает not_started урок как
// in_progress и ставит курсор на первое упражнение.
func (o *Orchestrator) SelectLesson(ctx context.Context, courseID, lessonID string) error {
	g := o.gen.Add(1)
	o.setState(StateLoadingLesson)

	loaded, err := o.lessons.FetchLessonData(ctx, courseID, lessonID)
	if err != nil {
		o.setState(StateReady)
		return err
	}
	if o.stale(g) {
		return nil
	}

	o.lessons.StoreLesson(courseID, *loaded)
	o.lessons.SetCurrent(courseID, lessonID)

	o.prog.FetchLessonProgress(ctx, courseID, lessonID)
	if o.stale(g) {
		return nil
	}

	if o.prog.LessonStatus(courseID, lessonID) == domain.StatusNotStarted {
		if _, err := o.prog.UpdateLessonProgress(ctx, courseID, lessonID, domain.StatusInProgress, loaded, ""); err != nil {
			o.setState(StateReady)
			return err
		}
		if o.stale(g) {
			return nil
		}
	}

	o.pointFirstExercise(loaded)
	o.points.FetchLessonPoints(ctx, courseID, lessonID)

	o.setState(StateReady)
	return nil
}

// HandleAnswerSubmit прогоняет ответ через курсор и, если урок этим
// перешел в completed, единожды начисляет бонус завершения.
func (o *Orchestrator) HandleAnswerSubmit(ctx context.Context, answer string) (*domain.ExercisePointsResult, error) {
	courseID, lessonID := o.lessons.Current()
	currentLesson := o.lessons.CurrentLesson()

	o.setState(StateSubmitting)

	before := o.prog.LessonStatus(courseID, lessonID)

	result, err := o.cursor.SubmitAnswer(ctx, courseID, currentLesson, answer)
	if err != nil {
		o.setState(StateReady)
		return nil, err
	}

	if result.IsCorrect {
		o.setState(StateAdvancing)
		after := o.prog.LessonStatus(courseID, lessonID)
		if before != domain.StatusCompleted && after == domain.StatusCompleted {
			o.awardLessonCompletion(ctx, courseID, lessonID)
		}
	} else {
		o.setState(StateReady)
	}

	return result, nil
}

// HandleNextExercise двигает курсор; на границе урока завершает урок,
// переходит к следующему или, если урок был последним, закрывает курс.
// Возвращает новое текущее упражнение, nil — когда показывать нечего.
func (o *Orchestrator) HandleNextExercise(ctx context.Context) (*domain.Exercise, error) {
	courseID, lessonID := o.lessons.Current()
	currentLesson := o.lessons.CurrentLesson()
	if currentLesson == nil {
		return nil, domain.ErrNoActiveExercise
	}
	// Пустой курсор — не "конец урока", а отсутствие активного
	// упражнения: завершение отсюда не запускаем.
	if o.cursor.CurrentExerciseID() == "" {
		return nil, domain.ErrNoActiveExercise
	}

	if next := o.cursor.NextExercise(currentLesson); next != nil {
		o.setState(StateReady)
		return next, nil
	}

	// Конец последовательности: границу урока пересекаем здесь.
	if err := o.HandleLessonCompletion(ctx, courseID, lessonID); err != nil {
		return nil, err
	}

	nextLesson := o.catalog.NextLesson(lessonID)
	if nextLesson == nil {
		// Курс пройден.
		o.awardCourseCompletion(ctx, courseID)
		o.setState(StateReady)
		return nil, nil
	}

	if err := o.SelectLesson(ctx, courseID, nextLesson.ID); err != nil {
		return nil, err
	}
	return o.cursor.CurrentExercise(o.lessons.CurrentLesson()), nil
}

// HandleLessonCompletion помечает урок завершенным и единожды
// начисляет бонус. Правило "completed только с последнего упражнения"
// досчитывает ProgressLedger, обойти его отсюда нельзя.
func (o *Orchestrator) HandleLessonCompletion(ctx context.Context, courseID, lessonID string) error {
	l, ok := o.lessons.Lesson(courseID, lessonID)
	if !ok {
		return domain.ErrInvalidLessonData
	}

	before := o.prog.LessonStatus(courseID, lessonID)
	applied, err := o.prog.UpdateLessonProgress(ctx, courseID, lessonID, domain.StatusCompleted, &l, l.LastExerciseID())
	if err != nil {
		return err
	}

	if before != domain.StatusCompleted && applied == domain.StatusCompleted {
		o.awardLessonCompletion(ctx, courseID, lessonID)
	}
	return nil
}

// awardLessonCompletion дергает completeLesson ровно один раз на
// (courseId, lessonId): сам ledger от повторов не защищен.
func (o *Orchestrator) awardLessonCompletion(ctx context.Context, courseID, lessonID string) {
	k := courseID + "/" + lessonID
	o.mu.Lock()
	if o.awardedLessons[k] {
		o.mu.Unlock()
		return
	}
	o.awardedLessons[k] = true
	o.mu.Unlock()

	if _, err := o.points.CompleteLesson(ctx, courseID, lessonID); err != nil {
		log.Printf("Failed to award lesson completion for %s: %v", k, err)
	}
}

func (o *Orchestrator) awardCourseCompletion(ctx context.Context, courseID string) {
	o.mu.Lock()
	if o.awardedCourses[courseID] {
		o.mu.Unlock()
		return
	}
	o.awardedCourses[courseID] = true
	o.mu.Unlock()

	if _, err := o.points.CompleteCourse(ctx, courseID); err != nil {
		log.Printf("Failed to award course completion for %s: %v", courseID, err)
	}
}

func (o *Orchestrator) pointFirstExercise(l *domain.Lesson) {
	if l == nil || len(l.Exercises) == 0 {
		log.Printf("No exercises found in current lesson")
		return
	}
	o.cursor.SetCurrentExercise(l.Exercises[0].ID)
}

// CurrentExercise резолвит курсор против текущего урока.
func (o *Orchestrator) CurrentExercise() *domain.Exercise {
	return o.cursor.CurrentExercise(o.lessons.CurrentLesson())
}

// Logout чистит сессию и все состояние учебной страницы.
func (o *Orchestrator) Logout(ctx context.Context) {
	o.session.SignOut(ctx)
	o.Reset()
}

// Reset — teardown всех контейнеров состояния.
func (o *Orchestrator) Reset() {
	o.catalog.ClearCourseData()
	o.lessons.ClearLessonData()
	o.cursor.ClearExerciseData()
	o.prog.ClearProgressData()
	o.points.ClearPointsData()

	o.mu.Lock()
	o.state = StateUninitialized
	o.awardedLessons = make(map[string]bool)
	o.awardedCourses = make(map[string]bool)
	o.mu.Unlock()
}
