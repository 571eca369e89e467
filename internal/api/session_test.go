package api

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyarena/pkarena/internal/domains/entities"
)

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	first := NewSessionStore(path)
	assert.False(t, first.Active())
	require.NoError(t, first.SetSession(entities.Session{
		AccessToken:  "a1",
		RefreshToken: "r1",
		User:         entities.User{Id: "u-1", Nickname: "Tester"},
	}))
	require.NoError(t, first.SetNote("ch-tcp", "review the handshake"))

	second := NewSessionStore(path)
	assert.True(t, second.Active())
	access, refresh := second.Tokens()
	assert.Equal(t, "a1", access)
	assert.Equal(t, "r1", refresh)
	assert.Equal(t, "Tester", second.User().Nickname)
	assert.Equal(t, "review the handshake", second.Note("ch-tcp"))
}

func TestClearKeepsNotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewSessionStore(path)
	require.NoError(t, store.SetSession(entities.Session{AccessToken: "a1"}))
	require.NoError(t, store.SetNote("ch-http", "idempotent methods"))

	require.NoError(t, store.Clear())
	assert.False(t, store.Active())
	assert.Equal(t, "idempotent methods", store.Note("ch-http"))

	reloaded := NewSessionStore(path)
	assert.False(t, reloaded.Active())
	assert.Equal(t, "idempotent methods", reloaded.Note("ch-http"))
}

func TestUserIdFromTokenSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-from-token",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	store := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.SetSession(entities.Session{
		AccessToken: token,
		User:        entities.User{Id: "u-from-profile"},
	}))
	assert.Equal(t, "u-from-token", store.UserId())
}

func TestUserIdFallsBackToProfile(t *testing.T) {
	store := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.SetSession(entities.Session{
		AccessToken: "not-a-jwt",
		User:        entities.User{Id: "u-from-profile"},
	}))
	assert.Equal(t, "u-from-profile", store.UserId())
}

func TestUnsetNoteDeletes(t *testing.T) {
	store := NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.SetNote("ch-1", "temp"))
	require.NoError(t, store.SetNote("ch-1", ""))
	assert.Empty(t, store.Note("ch-1"))
	assert.Empty(t, store.Notes())
}
