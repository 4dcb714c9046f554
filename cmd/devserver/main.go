package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"learnplatform/internal/config"
	"learnplatform/internal/devserver"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.AccessSecret == "" {
		log.Fatal("ACCESS_SECRET is required")
	}

	// Без DB_HOST работаем на in-memory хранилище.
	var repo devserver.Repository
	if cfg.DBHost != "" {
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		repo, err = devserver.NewPostgresRepository(db)
		if err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
		log.Println("Using Postgres at", cfg.DBHost)
	} else {
		repo = devserver.NewMemoryRepository()
		log.Println("DB_HOST not set, using in-memory repository")
	}

	// Redis тоже опционален: без него логин не лимитируется.
	var limiter *devserver.RateLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("Connected to Redis at", cfg.RedisAddr)
		window := time.Duration(cfg.SigninRateWindowSec) * time.Second
		limiter = devserver.NewRateLimiter(rdb, cfg.SigninRateLimit, window)
	}

	tokens := devserver.NewTokenManager(cfg.AccessSecret)
	server := devserver.NewServer(devserver.DemoContent(), repo, tokens)

	origins := []string{"http://localhost:3000"}
	if cfg.AllowedOrigins != "" {
		origins = strings.Split(cfg.AllowedOrigins, ",")
	}

	router := devserver.NewRouter(server, limiter, origins)

	log.Printf("Dev server running on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
