package session_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnplatform/internal/api"
	"learnplatform/internal/devserver"
	"learnplatform/internal/domain"
	"learnplatform/internal/session"
)

func newBackend(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := devserver.NewServer(devserver.DemoContent(), devserver.NewMemoryRepository(), devserver.NewTokenManager("test-secret"))
	ts := httptest.NewServer(devserver.NewRouter(srv, nil, []string{"http://localhost:3000"}))
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}

func newStore(base string, storage session.Storage) *session.Store {
	store := session.NewStore(storage)
	client := api.NewClient(base, store)
	store.SetAPI(client)
	return store
}

func TestSignUpSignsIn(t *testing.T) {
	base := newBackend(t)
	store := newStore(base, session.NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, store.SignUp(ctx, "alice@example.com", "alice", "secret123"))

	assert.True(t, store.IsValid())
	assert.Equal(t, "alice", store.Session().Username)
	assert.Equal(t, "alice@example.com", store.Session().Email)

	token, ok := store.Token()
	assert.True(t, ok)
	assert.NotEmpty(t, token)
}

func TestSignUpDuplicate(t *testing.T) {
	base := newBackend(t)
	store := newStore(base, session.NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, store.SignUp(ctx, "alice@example.com", "alice", "secret123"))

	other := newStore(base, session.NewMemoryStorage())
	err := other.SignUp(ctx, "alice@example.com", "alice", "secret123")
	assert.ErrorIs(t, err, domain.ErrAccountExists)
	assert.False(t, other.IsValid())
}

func TestSignUpInvalidInput(t *testing.T) {
	base := newBackend(t)
	store := newStore(base, session.NewMemoryStorage())

	err := store.SignUp(context.Background(), "bob@example.com", "bob", "short")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSignInWrongPassword(t *testing.T) {
	base := newBackend(t)
	store := newStore(base, session.NewMemoryStorage())
	ctx := context.Background()

	require.NoError(t, store.SignUp(ctx, "alice@example.com", "alice", "secret123"))
	store.SignOut(ctx)

	err := store.SignIn(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.False(t, store.IsValid())
}

func TestRestoreFromStorage(t *testing.T) {
	base := newBackend(t)
	storage := session.NewMemoryStorage()
	ctx := context.Background()

	first := newStore(base, storage)
	require.NoError(t, first.SignUp(ctx, "alice@example.com", "alice", "secret123"))

	// Новый store поверх того же хранилища — имитация рестарта.
	second := newStore(base, storage)
	assert.False(t, second.IsValid())

	second.RestoreFromStorage(ctx)
	assert.True(t, second.IsValid())
	assert.Equal(t, "alice", second.Session().Username)
	assert.Equal(t, first.Session().Token, second.Session().Token)
}

func TestRestorePartialStateClears(t *testing.T) {
	base := newBackend(t)
	storage := session.NewMemoryStorage()
	ctx := context.Background()

	first := newStore(base, storage)
	require.NoError(t, first.SignUp(ctx, "alice@example.com", "alice", "secret123"))

	// Ломаем один из трех ключей: восстановление все-или-ничего.
	require.NoError(t, storage.Delete(ctx, "user"))

	second := newStore(base, storage)
	second.RestoreFromStorage(ctx)
	assert.False(t, second.IsValid())

	// Очистка каскадная: токен тоже должен пропасть из хранилища.
	token, err := storage.Get(ctx, "session_token")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestSignOutClearsEverything(t *testing.T) {
	base := newBackend(t)
	storage := session.NewMemoryStorage()
	ctx := context.Background()

	store := newStore(base, storage)
	require.NoError(t, store.SignUp(ctx, "alice@example.com", "alice", "secret123"))

	store.SignOut(ctx)

	assert.False(t, store.IsValid())
	_, ok := store.Token()
	assert.False(t, ok)

	token, err := storage.Get(ctx, "session_token")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestProtectedRequestWithoutToken(t *testing.T) {
	base := newBackend(t)
	store := newStore(base, session.NewMemoryStorage())
	client := api.NewClient(base, store)

	_, err := client.GetPointsSummary(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}
