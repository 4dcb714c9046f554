package devserver

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const ctxUserKey = "user"

func currentUser(c *gin.Context) *User {
	return c.MustGet(ctxUserKey).(*User)
}

// AuthMiddleware валидирует Bearer-токен и кладет пользователя в контекст.
func AuthMiddleware(tokens *TokenManager, repo Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		username, err := tokens.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		user, err := repo.UserByUsername(c, username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// NewRouter собирает все маршруты dev-сервера. limiter опционален:
// без Redis логин просто не лимитируется.
func NewRouter(s *Server, limiter *RateLimiter, allowedOrigins []string) *gin.Engine {
	r := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	r.Use(cors.New(config))

	signin := []gin.HandlerFunc{s.SignIn}
	if limiter != nil {
		signin = []gin.HandlerFunc{limiter.Limit("signin"), s.SignIn}
	}

	api := r.Group("/api")
	{
		api.POST("/register", s.Register)
		api.POST("/signin", signin...)

		api.GET("/courses", s.ListCourses)
		api.GET("/courses/:courseId", s.GetCourse)
		api.GET("/courses/:courseId/lessons/:lessonId", s.GetLesson)
		api.GET("/leaderboard", s.Leaderboard)

		authed := api.Group("")
		authed.Use(AuthMiddleware(s.tokens, s.repo))
		{
			authed.POST("/logout", s.Logout)

			authed.GET("/courses/:courseId/progress", s.GetCourseProgress)
			authed.POST("/courses/:courseId/progress", s.InitCourseProgress)
			authed.GET("/courses/:courseId/lessons/:lessonId/progress", s.GetLessonProgress)
			authed.POST("/courses/:courseId/lessons/:lessonId/progress", s.UpdateLessonProgress)

			authed.POST("/courses/:courseId/lessons/:lessonId/exercises/:exerciseId/attempt", s.SubmitAttempt)
			authed.POST("/courses/:courseId/lessons/:lessonId/exercises/:exerciseId/points", s.SubmitAttemptWithPoints)
			authed.POST("/courses/:courseId/lessons/:lessonId/complete", s.CompleteLesson)
			authed.POST("/courses/:courseId/complete", s.CompleteCourse)
			authed.GET("/courses/:courseId/lessons/:lessonId/points", s.LessonPoints)

			authed.GET("/points/summary", s.PointsSummary)
			authed.GET("/stats/daily-streak", s.DailyStreak)
			authed.GET("/stats/accuracy", s.Accuracy)
		}
	}

	return r
}
