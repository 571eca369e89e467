package servertest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/studyarena/pkarena/internal/domains/entities"
	"github.com/studyarena/pkarena/pkg/logging"
	"github.com/studyarena/pkarena/pkg/utils"
	"go.uber.org/zap"
)

type contextKey string

const userIdKey contextKey = "userId"

// server is a self-contained PK backend for local development and
// integration tests: in-memory users, matchmaking, battles and
// friendships behind the same REST/WS surface the real platform
// exposes.
type server struct {
	address  string
	upgrader websocket.Upgrader
	config   Config

	mu         sync.Mutex
	users      map[string]*userRecord
	byUsername map[string]*userRecord
	queue      []queueTicket
	friends    map[string]map[string]bool
	requests   map[string]*entities.FriendRequest
	invites    map[string]*inviteRecord
	battles    sync.Map
}

type userRecord struct {
	user         entities.User
	password     string
	refreshToken string
	stats        entities.UserStats

	connMu sync.Mutex
	conn   *websocket.Conn
}

type queueTicket struct {
	userId string
	mode   string
}

type inviteRecord struct {
	inviteId string
	fromId   string
	toId     string
	mode     string
}

func NewServer() *server {
	cfg := NewConfig()
	srv := &server{
		address: "0.0.0.0:" + cfg.Port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		config:     cfg,
		users:      make(map[string]*userRecord),
		byUsername: make(map[string]*userRecord),
		friends:    make(map[string]map[string]bool),
		requests:   make(map[string]*entities.FriendRequest),
		invites:    make(map[string]*inviteRecord),
	}
	srv.seedUsers()
	return srv
}

func (s *server) seedUsers() {
	seeds := []struct {
		id, username, nickname string
		elo                    float64
	}{
		{"u-alice", "alice", "Alice", 1320},
		{"u-bob", "bob", "Bob", 1280},
		{"u-carol", "carol", "Carol", 1040},
	}
	for _, seed := range seeds {
		record := &userRecord{
			user: entities.User{
				Id:        seed.id,
				Username:  seed.username,
				Nickname:  seed.nickname,
				Elo:       seed.elo,
				Tier:      utils.TierForElo(seed.elo),
				CreatedAt: time.Now(),
			},
			password: "password",
			stats: entities.UserStats{
				UserId: seed.id,
				Elo:    seed.elo,
				Tier:   utils.TierForElo(seed.elo),
			},
		}
		s.users[seed.id] = record
		s.byUsername[seed.username] = record
	}
	// Alice and Bob start out as friends
	s.friends["u-alice"] = map[string]bool{"u-bob": true}
	s.friends["u-bob"] = map[string]bool{"u-alice": true}
}

// Start method    starts the fake PK server
func (s *server) Start() error {
	logging.Info("servertest started", zap.String("port", s.config.Port))
	return http.ListenAndServe(s.address, s.Routes())
}

// Routes builds the full REST/WS surface. Exposed so tests can mount
// it on an httptest server.
func (s *server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/user/profile", s.handleProfile)
		r.Put("/api/user/profile", s.handleUpdateProfile)
		r.Get("/api/user/stats", s.handleStats)
		r.Get("/api/courses", s.handleCourses)
		r.Get("/api/courses/{courseId}", s.handleCourse)
		r.Get("/api/content/chapters/{chapterId}", s.handleChapter)

		r.Post("/api/pk/matching/join", s.handleJoinQueue)
		r.Post("/api/pk/matching/leave", s.handleLeaveQueue)
		r.Get("/api/pk/battles/{battleId}", s.handleBattleInfo)
		r.Post("/api/pk/battles/{battleId}/answer", s.handleAnswer)
		r.Post("/api/pk/battles/{battleId}/start-report", s.handleStartReport)
		r.Post("/api/pk/battles/{battleId}/end", s.handleEndBattle)
		r.Post("/api/pk/battles/{battleId}/forfeit", s.handleForfeit)
		r.Get("/api/pk/rankings", s.handleRankings)
		r.Get("/api/pk/rankings/{userId}", s.handleUserRanking)
		r.Get("/api/pk/friends", s.handleFriends)
		r.Delete("/api/pk/friends/{friendId}", s.handleRemoveFriend)
		r.Get("/api/pk/friends/requests", s.handleFriendRequests)
		r.Post("/api/pk/friends/requests", s.handleSendFriendRequest)
		r.Post("/api/pk/friends/requests/{requestId}/accept", s.handleAcceptFriendRequest)
		r.Post("/api/pk/friends/requests/{requestId}/reject", s.handleRejectFriendRequest)
		r.Get("/api/pk/friends/search", s.handleSearchUsers)
		r.Post("/api/pk/friends/{friendId}/invite", s.handleInviteFriend)
		r.Post("/api/pk/invites/{inviteId}/accept", s.handleAcceptInvite)
		r.Post("/api/pk/invites/{inviteId}/reject", s.handleRejectInvite)
	})

	r.Get("/ws", s.handleWebSocket)
	return r
}

func (s *server) issueToken(userId string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userId,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(s.config.AccessTokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(s.config.JwtSecret))
}

func (s *server) authenticate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errInvalidToken
	}
	return sub, nil
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, 401, "missing token")
			return
		}
		userId, err := s.authenticate(header[len(prefix):])
		if err != nil {
			writeError(w, http.StatusUnauthorized, 401, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), userIdKey, userId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUserId(r *http.Request) string {
	userId, _ := r.Context().Value(userIdKey).(string)
	return userId
}

func (s *server) userById(id string) (*userRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.users[id]
	return record, ok
}

// push sends a message over the user's notification channel, if any.
func (record *userRecord) push(msgType string, data interface{}) {
	record.connMu.Lock()
	defer record.connMu.Unlock()
	if record.conn == nil {
		return
	}
	if err := record.conn.WriteJSON(wsEnvelope(msgType, data)); err != nil {
		logging.Warn("failed to push notification",
			zap.String("user_id", record.user.Id),
			zap.String("type", msgType),
			zap.Error(err),
		)
	}
}
