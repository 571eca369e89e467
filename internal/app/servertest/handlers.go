package servertest

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
	"github.com/studyarena/pkarena/pkg/logging"
	"github.com/studyarena/pkarena/pkg/utils"
	"go.uber.org/zap"
)

var errInvalidToken = errors.New("invalid token")

type pushMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func wsEnvelope(msgType string, data interface{}) pushMessage {
	return pushMessage{Type: msgType, Data: data, Timestamp: time.Now()}
}

type envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeOK(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(envelope{Code: 200, Message: "success", Data: data}); err != nil {
		logging.Error("failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, httpStatus, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(envelope{Code: code, Message: message}); err != nil {
		logging.Error("failed to write response", zap.Error(err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, 400, "malformed request body")
		return false
	}
	return true
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dtos.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	record, ok := s.byUsername[req.Username]
	if !ok || record.password != req.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, 401, "invalid credentials")
		return
	}
	record.refreshToken = uuid.New().String()
	user := record.user
	refreshToken := record.refreshToken
	s.mu.Unlock()

	token, err := s.issueToken(user.Id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, 500, "failed to issue token")
		return
	}
	logging.Info("user logged in", zap.String("user_id", user.Id))
	writeOK(w, dtos.LoginResponse{Token: token, RefreshToken: refreshToken, User: user})
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req dtos.RefreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mu.Lock()
	var record *userRecord
	for _, candidate := range s.users {
		if candidate.refreshToken != "" && candidate.refreshToken == req.RefreshToken {
			record = candidate
			break
		}
	}
	if record == nil {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, 401, "invalid refresh token")
		return
	}
	record.refreshToken = uuid.New().String()
	userId := record.user.Id
	refreshToken := record.refreshToken
	s.mu.Unlock()

	token, err := s.issueToken(userId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, 500, "failed to issue token")
		return
	}
	writeOK(w, dtos.RefreshResponse{Token: token, RefreshToken: refreshToken})
}

func (s *server) handleProfile(w http.ResponseWriter, r *http.Request) {
	record, ok := s.userById(requestUserId(r))
	if !ok {
		writeError(w, http.StatusNotFound, 404, "user not found")
		return
	}
	s.mu.Lock()
	user := record.user
	s.mu.Unlock()
	writeOK(w, user)
}

func (s *server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dtos.UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	record, ok := s.userById(requestUserId(r))
	if !ok {
		writeError(w, http.StatusNotFound, 404, "user not found")
		return
	}
	s.mu.Lock()
	if req.Nickname != "" {
		record.user.Nickname = req.Nickname
	}
	if req.Avatar != "" {
		record.user.Avatar = req.Avatar
	}
	user := record.user
	s.mu.Unlock()
	writeOK(w, user)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	record, ok := s.userById(requestUserId(r))
	if !ok {
		writeError(w, http.StatusNotFound, 404, "user not found")
		return
	}
	s.mu.Lock()
	stats := record.stats
	s.mu.Unlock()
	writeOK(w, stats)
}

var courseCatalog = []entities.Course{
	{
		Id:          "c-networks",
		Title:       "Computer Networks",
		Description: "Transport protocols, HTTP and the sockets underneath",
		Chapters: []entities.Chapter{
			{Id: "ch-tcp", CourseId: "c-networks", Title: "TCP in practice", Order: 1},
			{Id: "ch-http", CourseId: "c-networks", Title: "HTTP semantics", Order: 2},
		},
	},
	{
		Id:          "c-go",
		Title:       "Practical Go",
		Description: "Concurrency, interfaces and the standard library",
		Chapters: []entities.Chapter{
			{Id: "ch-goroutines", CourseId: "c-go", Title: "Goroutines and channels", Order: 1},
			{Id: "ch-json", CourseId: "c-go", Title: "Working with JSON", Order: 2},
		},
	},
}

func (s *server) handleCourses(w http.ResponseWriter, r *http.Request) {
	writeOK(w, dtos.CourseListResponse{Courses: courseCatalog, Total: len(courseCatalog)})
}

func (s *server) handleCourse(w http.ResponseWriter, r *http.Request) {
	courseId := chi.URLParam(r, "courseId")
	for _, course := range courseCatalog {
		if course.Id == courseId {
			writeOK(w, course)
			return
		}
	}
	writeError(w, http.StatusNotFound, 404, "course not found")
}

func (s *server) handleChapter(w http.ResponseWriter, r *http.Request) {
	chapterId := chi.URLParam(r, "chapterId")
	for _, course := range courseCatalog {
		for _, chapter := range course.Chapters {
			if chapter.Id == chapterId {
				chapter.Content = "<p>Sample chapter content for " + chapter.Title + ".</p>"
				writeOK(w, chapter)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, 404, "chapter not found")
}

func (s *server) handleJoinQueue(w http.ResponseWriter, r *http.Request) {
	var req dtos.JoinQueueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = "standard"
	}
	userId := requestUserId(r)

	s.mu.Lock()
	for _, ticket := range s.queue {
		if ticket.userId == userId {
			s.mu.Unlock()
			writeOK(w, nil)
			return
		}
	}
	// Copy before removal: shrinking the slice shifts its elements
	var opponentId string
	for i, ticket := range s.queue {
		if ticket.mode == req.Mode {
			opponentId = ticket.userId
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	if opponentId == "" {
		s.queue = append(s.queue, queueTicket{userId: userId, mode: req.Mode})
		s.mu.Unlock()
		writeOK(w, nil)
		return
	}
	s.mu.Unlock()

	s.createBattle(req.Mode, userId, opponentId)
	writeOK(w, nil)
}

func (s *server) handleLeaveQueue(w http.ResponseWriter, r *http.Request) {
	userId := requestUserId(r)
	s.mu.Lock()
	for i, ticket := range s.queue {
		if ticket.userId == userId {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	writeOK(w, nil)
}

func (s *server) handleRankings(w http.ResponseWriter, r *http.Request) {
	tier := r.URL.Query().Get("tier")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries := s.rankingEntries()
	if tier != "" {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.Tier == tier {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	total := len(entries)
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	writeOK(w, dtos.RankingsResponse{Entries: entries, Total: total})
}

func (s *server) handleUserRanking(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "userId")
	for _, entry := range s.rankingEntries() {
		if entry.UserId == userId {
			writeOK(w, entry)
			return
		}
	}
	writeError(w, http.StatusNotFound, 404, "user not ranked")
}

func (s *server) rankingEntries() []entities.RankingEntry {
	s.mu.Lock()
	entries := make([]entities.RankingEntry, 0, len(s.users))
	for _, record := range s.users {
		entries = append(entries, entities.RankingEntry{
			UserId:   record.user.Id,
			Nickname: record.user.Nickname,
			Elo:      record.stats.Elo,
			Tier:     record.stats.Tier,
			Wins:     record.stats.Wins,
			Losses:   record.stats.Losses,
		})
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Elo > entries[j].Elo
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func (s *server) handleFriends(w http.ResponseWriter, r *http.Request) {
	userId := requestUserId(r)
	s.mu.Lock()
	friends := make([]entities.Friend, 0, len(s.friends[userId]))
	for friendId := range s.friends[userId] {
		record, ok := s.users[friendId]
		if !ok {
			continue
		}
		record.connMu.Lock()
		online := record.conn != nil
		record.connMu.Unlock()
		friends = append(friends, entities.Friend{
			Id:       record.user.Id,
			Nickname: record.user.Nickname,
			Avatar:   record.user.Avatar,
			Online:   online,
			Elo:      record.stats.Elo,
			Tier:     record.stats.Tier,
		})
	}
	s.mu.Unlock()

	sort.Slice(friends, func(i, j int) bool { return friends[i].Nickname < friends[j].Nickname })
	writeOK(w, friends)
}

func (s *server) handleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	userId := requestUserId(r)
	friendId := chi.URLParam(r, "friendId")
	s.mu.Lock()
	delete(s.friends[userId], friendId)
	delete(s.friends[friendId], userId)
	s.mu.Unlock()
	writeOK(w, nil)
}

func (s *server) handleFriendRequests(w http.ResponseWriter, r *http.Request) {
	userId := requestUserId(r)
	s.mu.Lock()
	requests := make([]entities.FriendRequest, 0)
	for _, request := range s.requests {
		if request.ToUserId == userId && request.Status == "pending" {
			requests = append(requests, *request)
		}
	}
	s.mu.Unlock()

	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
	writeOK(w, requests)
}

func (s *server) handleSendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req dtos.FriendRequestSubmission
	if !decodeBody(w, r, &req) {
		return
	}
	userId := requestUserId(r)

	s.mu.Lock()
	if _, ok := s.users[req.ToUserId]; !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, 404, "user not found")
		return
	}
	if s.friends[userId][req.ToUserId] {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, 409, "already friends")
		return
	}
	for _, request := range s.requests {
		if request.FromUserId == userId && request.ToUserId == req.ToUserId && request.Status == "pending" {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, 409, "request already pending")
			return
		}
	}
	request := &entities.FriendRequest{
		Id:         uuid.New().String(),
		FromUserId: userId,
		ToUserId:   req.ToUserId,
		Message:    req.Message,
		Status:     "pending",
		CreatedAt:  time.Now(),
	}
	s.requests[request.Id] = request
	s.mu.Unlock()
	writeOK(w, request)
}

func (s *server) resolveFriendRequest(w http.ResponseWriter, r *http.Request, accept bool) {
	userId := requestUserId(r)
	requestId := chi.URLParam(r, "requestId")

	s.mu.Lock()
	request, ok := s.requests[requestId]
	if !ok || request.ToUserId != userId || request.Status != "pending" {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, 404, "request not found")
		return
	}
	if accept {
		request.Status = "accepted"
		if s.friends[request.FromUserId] == nil {
			s.friends[request.FromUserId] = make(map[string]bool)
		}
		if s.friends[request.ToUserId] == nil {
			s.friends[request.ToUserId] = make(map[string]bool)
		}
		s.friends[request.FromUserId][request.ToUserId] = true
		s.friends[request.ToUserId][request.FromUserId] = true
	} else {
		request.Status = "rejected"
	}
	s.mu.Unlock()
	writeOK(w, nil)
}

func (s *server) handleAcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	s.resolveFriendRequest(w, r, true)
}

func (s *server) handleRejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	s.resolveFriendRequest(w, r, false)
}

func (s *server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	userId := requestUserId(r)
	query := strings.ToLower(r.URL.Query().Get("q"))

	s.mu.Lock()
	results := make([]dtos.UserSearchResult, 0)
	for _, record := range s.users {
		if record.user.Id == userId {
			continue
		}
		if query != "" && !strings.HasPrefix(strings.ToLower(record.user.Nickname), query) &&
			!strings.HasPrefix(strings.ToLower(record.user.Username), query) {
			continue
		}
		pending := false
		for _, request := range s.requests {
			if request.FromUserId == userId && request.ToUserId == record.user.Id && request.Status == "pending" {
				pending = true
				break
			}
		}
		results = append(results, dtos.UserSearchResult{
			User:           record.user,
			IsFriend:       s.friends[userId][record.user.Id],
			RequestPending: pending,
		})
	}
	s.mu.Unlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].User.Nickname < results[j].User.Nickname
	})
	writeOK(w, results)
}

func (s *server) handleInviteFriend(w http.ResponseWriter, r *http.Request) {
	var req dtos.JoinQueueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = "standard"
	}
	userId := requestUserId(r)
	friendId := chi.URLParam(r, "friendId")

	s.mu.Lock()
	from, fromOk := s.users[userId]
	target, targetOk := s.users[friendId]
	if !fromOk || !targetOk {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, 404, "user not found")
		return
	}
	invite := &inviteRecord{
		inviteId: uuid.New().String(),
		fromId:   userId,
		toId:     friendId,
		mode:     req.Mode,
	}
	s.invites[invite.inviteId] = invite
	fromUser := from.user
	s.mu.Unlock()

	target.push("INVITE_RECEIVED", dtos.BattleInvite{
		InviteId: invite.inviteId,
		FromUser: entities.Opponent{
			Id:       fromUser.Id,
			Nickname: fromUser.Nickname,
			Avatar:   fromUser.Avatar,
			Elo:      fromUser.Elo,
			Tier:     fromUser.Tier,
		},
		Mode: req.Mode,
	})
	writeOK(w, nil)
}

func (s *server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	userId := requestUserId(r)
	inviteId := chi.URLParam(r, "inviteId")

	s.mu.Lock()
	invite, ok := s.invites[inviteId]
	if !ok || invite.toId != userId {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, 404, "invite not found")
		return
	}
	delete(s.invites, inviteId)
	s.mu.Unlock()

	battleId := s.createBattle(invite.mode, invite.toId, invite.fromId)
	opponent := s.opponentCard(invite.fromId)
	writeOK(w, dtos.MatchFound{BattleId: battleId, Opponent: opponent})
}

func (s *server) handleRejectInvite(w http.ResponseWriter, r *http.Request) {
	userId := requestUserId(r)
	inviteId := chi.URLParam(r, "inviteId")

	s.mu.Lock()
	invite, ok := s.invites[inviteId]
	if ok && invite.toId == userId {
		delete(s.invites, inviteId)
	}
	s.mu.Unlock()
	writeOK(w, nil)
}

func (s *server) opponentCard(userId string) entities.Opponent {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.users[userId]
	if !ok {
		return entities.Opponent{Id: userId}
	}
	return entities.Opponent{
		Id:       record.user.Id,
		Nickname: record.user.Nickname,
		Avatar:   record.user.Avatar,
		Elo:      record.stats.Elo,
		Tier:     record.stats.Tier,
	}
}

// applyBattleOutcome updates both players' ratings and tallies once a
// battle ends. winnerId may be empty for a draw.
func (s *server) applyBattleOutcome(winnerId, loserId string, draw bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	winner, wOk := s.users[winnerId]
	loser, lOk := s.users[loserId]
	if !wOk || !lOk {
		return
	}
	if draw {
		winner.stats.Streak = 0
		loser.stats.Streak = 0
		return
	}
	winnerElo := utils.UpdateElo(winner.stats.Elo, loser.stats.Elo, 1)
	loserElo := utils.UpdateElo(loser.stats.Elo, winner.stats.Elo, 0)
	winner.stats.Elo = winnerElo
	winner.stats.Tier = utils.TierForElo(winnerElo)
	winner.stats.Wins++
	winner.stats.Streak++
	winner.user.Elo = winnerElo
	winner.user.Tier = winner.stats.Tier
	loser.stats.Elo = loserElo
	loser.stats.Tier = utils.TierForElo(loserElo)
	loser.stats.Losses++
	loser.stats.Streak = 0
	loser.user.Elo = loserElo
	loser.user.Tier = loser.stats.Tier
	for _, record := range []*userRecord{winner, loser} {
		if total := record.stats.Wins + record.stats.Losses; total > 0 {
			record.stats.WinRate = float64(record.stats.Wins) / float64(total)
		}
	}
}
