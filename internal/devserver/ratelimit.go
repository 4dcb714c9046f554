package devserver

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter ограничивает частоту запросов по IP через счетчик в
// Redis. Окно задается при конструировании и живет как TTL ключа:
// первый запрос заводит ключ, остальные только инкрементируют.
type RateLimiter struct {
	redisClient *redis.Client
	limit       int
	window      time.Duration
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redisClient: client,
		limit:       limit,
		window:      window,
	}
}

// Limit возвращает middleware для одной группы маршрутов; scope
// разводит счетчики разных групп по разным ключам.
func (rl *RateLimiter) Limit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:" + scope + ":" + c.ClientIP()

		count, err := rl.redisClient.Incr(c, key).Result()
		if err != nil {
			// Redis недоступен: запрос не блокируем, dev-сервер
			// продолжает работать без лимитера.
			log.Printf("Rate limiter unavailable for %s: %v", scope, err)
			c.Next()
			return
		}

		if count == 1 {
			rl.redisClient.Expire(c, key, rl.window)
		}

		if count > int64(rl.limit) {
			ttl, _ := rl.redisClient.TTL(c, key).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Too many attempts, slow down",
				"retryAfter": int(ttl.Seconds()),
			})
			return
		}

		c.Next()
	}
}
