package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"learnplatform/internal/api"
	"learnplatform/internal/domain"
)

// Store управляет сессией пользователя. Любая мутация сначала уходит в
// durable storage и только потом попадает в память, чтобы после
// перезагрузки состояние не оказалось "более авторизованным", чем хранилище.
type Store struct {
	storage Storage

	mu      sync.RWMutex
	client  *api.Client
	session domain.Session
}

func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// SetAPI связывает store с API-клиентом. Клиент, в свою очередь,
// получает store как TokenProvider, поэтому связывание двухшаговое.
func (s *Store) SetAPI(client *api.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

// Token реализует api.TokenProvider.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.session.Valid() {
		return "", false
	}
	return s.session.Token, true
}

func (s *Store) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Valid()
}

func (s *Store) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Store) SignIn(ctx context.Context, username, password string) error {
	resp, err := s.api().SignIn(ctx, username, password)
	if err != nil {
		if api.StatusCode(err) == http.StatusUnauthorized {
			return domain.ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", domain.ErrAuthService, err)
	}
	return s.SetSession(ctx, resp.Token, resp.ExpiresAt, resp.Username, resp.Email)
}

func (s *Store) SignUp(ctx context.Context, email, username, password string) error {
	_, err := s.api().SignUp(ctx, email, username, password)
	if err != nil {
		switch api.StatusCode(err) {
		case http.StatusConflict:
			return domain.ErrAccountExists
		case http.StatusBadRequest:
			return domain.ErrInvalidInput
		}
		return fmt.Errorf("%w: %v", domain.ErrAuthService, err)
	}
	// Регистрация сразу переходит во вход.
	return s.SignIn(ctx, username, password)
}

// SignOut зовет бэкенд best-effort: локальная сессия чистится всегда.
func (s *Store) SignOut(ctx context.Context) {
	if err := s.api().Logout(ctx); err != nil {
		log.Printf("Logout error: %v", err)
	}
	s.ClearSession(ctx)
}

func (s *Store) SetSession(ctx context.Context, token string, expiresAt time.Time, username, email string) error {
	ttl := time.Until(expiresAt)

	userData, err := json.Marshal(map[string]string{"username": username, "email": email})
	if err != nil {
		return err
	}

	// Сначала storage, потом память.
	if err := s.storage.Set(ctx, keyToken, token, ttl); err != nil {
		s.ClearSession(ctx)
		return err
	}
	if err := s.storage.Set(ctx, keyExpiry, expiresAt.Format(time.RFC3339), ttl); err != nil {
		s.ClearSession(ctx)
		return err
	}
	if err := s.storage.Set(ctx, keyUser, string(userData), ttl); err != nil {
		s.ClearSession(ctx)
		return err
	}

	s.mu.Lock()
	s.session = domain.Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  username,
		Email:     email,
	}
	s.mu.Unlock()
	return nil
}

// RestoreFromStorage восстанавливает сессию все-или-ничего: любой
// отсутствующий или битый кусок означает полную очистку.
func (s *Store) RestoreFromStorage(ctx context.Context) {
	token, err := s.storage.Get(ctx, keyToken)
	if err != nil || token == "" {
		s.ClearSession(ctx)
		return
	}
	expiryRaw, err := s.storage.Get(ctx, keyExpiry)
	if err != nil || expiryRaw == "" {
		s.ClearSession(ctx)
		return
	}
	userRaw, err := s.storage.Get(ctx, keyUser)
	if err != nil || userRaw == "" {
		s.ClearSession(ctx)
		return
	}

	expiresAt, err := time.Parse(time.RFC3339, expiryRaw)
	if err != nil {
		log.Printf("Error parsing token expiry: %v", err)
		s.ClearSession(ctx)
		return
	}

	var user struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.Unmarshal([]byte(userRaw), &user); err != nil {
		log.Printf("Error parsing user data: %v", err)
		s.ClearSession(ctx)
		return
	}

	// Хранилище не может продлить жизнь токена: если в самом JWT
	// exp раньше сохраненного срока, верим токену.
	if claimExpiry, ok := tokenExpiry(token); ok && claimExpiry.Before(expiresAt) {
		expiresAt = claimExpiry
	}

	s.mu.Lock()
	s.session = domain.Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Username:  user.Username,
		Email:     user.Email,
	}
	s.mu.Unlock()
}

func (s *Store) ClearSession(ctx context.Context) {
	if err := s.storage.Delete(ctx, keyToken, keyExpiry, keyUser); err != nil {
		log.Printf("Error clearing session storage: %v", err)
	}
	s.mu.Lock()
	s.session = domain.Session{}
	s.mu.Unlock()
}

func (s *Store) api() *api.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// tokenExpiry достает exp-claim без проверки подписи (секрет знает
// только сервер).
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
