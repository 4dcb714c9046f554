package domain

import "time"

// Session — активная сессия пользователя. Поля в памяти считаются
// достоверными только после записи в durable storage.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
}

// Valid проверяет срок жизни на каждый вызов, кэшированного флага нет.
func (s *Session) Valid() bool {
	if s == nil || s.Token == "" || s.ExpiresAt.IsZero() {
		return false
	}
	return s.ExpiresAt.After(time.Now())
}

type SignInResponse struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SignUpResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}
