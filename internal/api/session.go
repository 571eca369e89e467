package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/studyarena/pkarena/internal/domains/entities"
	"github.com/studyarena/pkarena/pkg/logging"
	"go.uber.org/zap"
)

// sessionFile is the on-disk shape, the desktop analog of the browser's
// localStorage keys (token, refreshToken, user, chapterNotes).
type sessionFile struct {
	Session      entities.Session  `json:"session"`
	ChapterNotes map[string]string `json:"chapterNotes,omitempty"`
}

// SessionStore persists the session to a JSON file. Tokens are trusted
// as-is; expiry is only ever learned from server 401 responses.
type SessionStore struct {
	path string

	mu   sync.RWMutex
	data sessionFile
}

func NewSessionStore(path string) *SessionStore {
	store := &SessionStore{
		path: path,
		data: sessionFile{ChapterNotes: make(map[string]string)},
	}
	raw, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(raw, &store.data); err != nil {
			logging.Warn("discarding unreadable session file", zap.Error(err))
			store.data = sessionFile{}
		}
	}
	if store.data.ChapterNotes == nil {
		store.data.ChapterNotes = make(map[string]string)
	}
	return store
}

func (s *SessionStore) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Session.AccessToken != ""
}

func (s *SessionStore) Tokens() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Session.AccessToken, s.data.Session.RefreshToken
}

func (s *SessionStore) User() entities.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Session.User
}

// UserId extracts the subject claim from the access token without
// verifying the signature. The server is the authority on validity.
func (s *SessionStore) UserId() string {
	access, _ := s.Tokens()
	if access == "" {
		return ""
	}
	token, _, err := jwt.NewParser().ParseUnverified(access, jwt.MapClaims{})
	if err != nil {
		return s.User().Id
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return s.User().Id
	}
	return sub
}

func (s *SessionStore) SetSession(session entities.Session) error {
	s.mu.Lock()
	s.data.Session = session
	s.mu.Unlock()
	return s.save()
}

func (s *SessionStore) SetTokens(access, refresh string) error {
	s.mu.Lock()
	s.data.Session.AccessToken = access
	if refresh != "" {
		s.data.Session.RefreshToken = refresh
	}
	s.mu.Unlock()
	return s.save()
}

func (s *SessionStore) Note(chapterId string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ChapterNotes[chapterId]
}

func (s *SessionStore) SetNote(chapterId, note string) error {
	s.mu.Lock()
	if note == "" {
		delete(s.data.ChapterNotes, chapterId)
	} else {
		s.data.ChapterNotes[chapterId] = note
	}
	s.mu.Unlock()
	return s.save()
}

func (s *SessionStore) Notes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notes := make(map[string]string, len(s.data.ChapterNotes))
	for id, note := range s.data.ChapterNotes {
		notes[id] = note
	}
	return notes
}

// Clear wipes the session but keeps chapter notes, which belong to the
// device rather than the login.
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	s.data.Session = entities.Session{}
	s.mu.Unlock()
	return s.save()
}

func (s *SessionStore) save() error {
	s.mu.RLock()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create session dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}
