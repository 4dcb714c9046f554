package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"learnplatform/internal/api"
	"learnplatform/internal/catalog"
	"learnplatform/internal/config"
	"learnplatform/internal/domain"
	"learnplatform/internal/exercise"
	"learnplatform/internal/learn"
	"learnplatform/internal/lesson"
	"learnplatform/internal/points"
	"learnplatform/internal/progress"
	"learnplatform/internal/session"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Сессия переживает рестарты только при наличии Redis.
	var storage session.Storage
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("Connected to Redis at", cfg.RedisAddr)
		storage = session.NewRedisStorage(rdb, "learn")
	} else {
		storage = session.NewMemoryStorage()
	}

	sess := session.NewStore(storage)
	client := api.NewClient(cfg.APIBase, sess)
	sess.SetAPI(client)

	ctx := context.Background()
	sess.RestoreFromStorage(ctx)

	prog := progress.NewLedger(client)
	pts := points.NewLedger(client)
	cat := catalog.NewCatalog(client, prog)
	lessons := lesson.NewCache(client, prog, pts)
	cursor := exercise.NewCursor(prog, pts)
	orch := learn.NewOrchestrator(sess, cat, lessons, cursor, prog, pts)

	if sess.IsValid() {
		fmt.Printf("Signed in as %s\n", sess.Session().Username)
	} else {
		fmt.Println("Not signed in. Use: signin <user> <pass> | signup <email> <user> <pass>")
	}
	fmt.Println("Commands: courses, open <course> [lesson], answer <text>, next, progress, points, logout, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "signin":
			if len(args) != 3 {
				fmt.Println("usage: signin <user> <pass>")
				continue
			}
			if err := sess.SignIn(ctx, args[1], args[2]); err != nil {
				fmt.Println("signin failed:", err)
				continue
			}
			fmt.Println("Signed in as", sess.Session().Username)

		case "signup":
			if len(args) != 4 {
				fmt.Println("usage: signup <email> <user> <pass>")
				continue
			}
			if err := sess.SignUp(ctx, args[1], args[2], args[3]); err != nil {
				fmt.Println("signup failed:", err)
				continue
			}
			fmt.Println("Signed up as", sess.Session().Username)

		case "courses":
			courses, err := cat.FetchCourses(ctx)
			if err != nil {
				fmt.Println("fetch failed:", err)
				continue
			}
			for _, c := range courses {
				fmt.Printf("  %s — %s (%d lessons)\n", c.ID, c.Name, c.LessonAmount)
			}

		case "open":
			if len(args) < 2 {
				fmt.Println("usage: open <course> [lesson]")
				continue
			}
			route := learn.Route{CourseID: args[1]}
			if len(args) > 2 {
				route.LessonID = args[2]
			}
			if err := orch.Initialize(ctx, route); err != nil {
				fmt.Println("open failed:", err)
				continue
			}
			if route.LessonID == "" {
				if course := cat.CurrentCourse(); course != nil {
					for _, l := range course.Lessons {
						locked := ""
						if !cat.CanAccessLesson(course.ID, l.ID) {
							locked = " [locked]"
						}
						fmt.Printf("  %s — %s%s\n", l.ID, l.Title, locked)
					}
				}
				continue
			}
			printExercise(orch.CurrentExercise())

		case "answer":
			if len(args) < 2 {
				fmt.Println("usage: answer <text>")
				continue
			}
			result, err := orch.HandleAnswerSubmit(ctx, strings.Join(args[1:], " "))
			if err != nil {
				fmt.Println("submit failed:", err)
				continue
			}
			if result.IsCorrect {
				fmt.Printf("Correct! +%d points (streak %d)\n", result.Points, result.CurrentStreak)
			} else {
				fmt.Println("Wrong, try again or type next")
			}

		case "next":
			ex, err := orch.HandleNextExercise(ctx)
			if err != nil {
				fmt.Println("advance failed:", err)
				continue
			}
			if ex == nil {
				fmt.Println("Course complete!")
				continue
			}
			printExercise(ex)

		case "progress":
			courseID, lessonID := lessons.Current()
			if courseID == "" {
				fmt.Println("no active lesson")
				continue
			}
			if cp, ok := prog.CourseProgress(courseID); ok {
				fmt.Printf("Course %s: %s, %d%%\n", courseID, cp.Status, cp.ProgressPercentage)
			}
			fmt.Printf("Lesson %s: %s\n", lessonID, prog.LessonStatus(courseID, lessonID))

		case "points":
			summary := pts.FetchSummary(ctx, 5)
			if summary == nil {
				fmt.Println("points unavailable")
				continue
			}
			fmt.Printf("Total %d, streak %d (max %d)\n", summary.TotalPoints, summary.CurrentStreak, summary.MaxStreak)
			for _, tx := range summary.RecentTransactions {
				fmt.Printf("  %+d %s\n", tx.Points, tx.Description)
			}

		case "logout":
			orch.Logout(ctx)
			fmt.Println("Signed out")

		case "quit", "exit":
			return

		default:
			fmt.Println("unknown command:", args[0])
		}
	}
}

func printExercise(ex *domain.Exercise) {
	if ex == nil {
		fmt.Println("no exercise to show")
		return
	}
	fmt.Printf("[%s] %s\n", ex.Type, ex.Question)
	for i, opt := range ex.Options {
		fmt.Printf("  %d) %s\n", i+1, opt)
	}
}
