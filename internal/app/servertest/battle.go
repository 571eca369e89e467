package servertest

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
	"github.com/studyarena/pkarena/pkg/logging"
	"github.com/studyarena/pkarena/pkg/utils"
	"go.uber.org/zap"
)

// battleSession is the server-side state of one 1v1 battle. Answers are
// judged here; clients only ever see verdicts.
type battleSession struct {
	id        string
	mode      string
	duration  time.Duration
	questions []bankQuestion

	mu      sync.Mutex
	players map[string]*battlePlayer
	started bool
	ended   bool
	results map[string]dtos.BattleResult
}

type battlePlayer struct {
	userId  string
	score   int
	correct int
	index   int
	joined  bool

	connMu sync.Mutex
	conn   *websocket.Conn
}

func (p *battlePlayer) push(msgType string, data interface{}) {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	if p.conn == nil {
		return
	}
	if err := p.conn.WriteJSON(wsEnvelope(msgType, data)); err != nil {
		logging.Warn("failed to push battle message",
			zap.String("user_id", p.userId),
			zap.String("type", msgType),
			zap.Error(err),
		)
	}
}

// createBattle sets up a session for two players and notifies both over
// their notification channels.
func (s *server) createBattle(mode, userA, userB string) string {
	session := &battleSession{
		id:        uuid.New().String(),
		mode:      mode,
		duration:  s.config.BattleDuration,
		questions: pickQuestions(s.config.QuestionsPerBattle),
		players: map[string]*battlePlayer{
			userA: {userId: userA},
			userB: {userId: userB},
		},
		results: make(map[string]dtos.BattleResult),
	}
	s.battles.Store(session.id, session)
	go s.expireBattle(session)
	logging.Info("battle created",
		zap.String("battle_id", session.id),
		zap.String("mode", mode),
		zap.String("player_a", userA),
		zap.String("player_b", userB),
	)

	if recordA, ok := s.userById(userA); ok {
		recordA.push("MATCH_FOUND", dtos.MatchFound{BattleId: session.id, Opponent: s.opponentCard(userB)})
	}
	if recordB, ok := s.userById(userB); ok {
		recordB.push("MATCH_FOUND", dtos.MatchFound{BattleId: session.id, Opponent: s.opponentCard(userA)})
	}
	return session.id
}

// expireBattle drops an abandoned session once its duration plus a
// grace period has passed, so the in-memory map cannot grow unbounded.
func (s *server) expireBattle(session *battleSession) {
	timer := utils.NewTimer(session.duration + time.Minute)
	defer timer.Stop()
	<-timer.C()

	session.mu.Lock()
	ended := session.ended
	session.mu.Unlock()
	if !ended {
		logging.Info("battle expired unplayed", zap.String("battle_id", session.id))
	}
	s.battles.Delete(session.id)
}

func (s *server) battleById(battleId string) (*battleSession, bool) {
	value, ok := s.battles.Load(battleId)
	if !ok {
		return nil, false
	}
	return value.(*battleSession), true
}

func (session *battleSession) player(userId string) (*battlePlayer, bool) {
	player, ok := session.players[userId]
	return player, ok
}

func (session *battleSession) opponentOf(userId string) *battlePlayer {
	for id, player := range session.players {
		if id != userId {
			return player
		}
	}
	return nil
}

func (s *server) handleBattleInfo(w http.ResponseWriter, r *http.Request) {
	userId := requestUserId(r)
	session, ok := s.battleById(chi.URLParam(r, "battleId"))
	if !ok {
		writeError(w, http.StatusNotFound, 404, "battle not found")
		return
	}
	session.mu.Lock()
	_, member := session.player(userId)
	opponent := session.opponentOf(userId)
	session.mu.Unlock()
	if !member {
		writeError(w, http.StatusForbidden, 403, "not a participant")
		return
	}

	// Strip correct answers before the questions leave the server
	questions := make([]entities.Question, len(session.questions))
	for i, bank := range session.questions {
		questions[i] = bank.question
	}
	writeOK(w, dtos.BattleInfoResponse{
		BattleId:    session.id,
		Mode:        session.mode,
		DurationSec: int(session.duration.Seconds()),
		Questions:   questions,
		Opponent:    s.opponentCard(opponent.userId),
	})
}

func (s *server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var submission dtos.AnswerSubmission
	if !decodeBody(w, r, &submission) {
		return
	}
	userId := requestUserId(r)
	session, ok := s.battleById(chi.URLParam(r, "battleId"))
	if !ok {
		writeError(w, http.StatusNotFound, 404, "battle not found")
		return
	}

	session.mu.Lock()
	player, member := session.player(userId)
	if !member {
		session.mu.Unlock()
		writeError(w, http.StatusForbidden, 403, "not a participant")
		return
	}
	if session.ended {
		session.mu.Unlock()
		writeError(w, http.StatusConflict, 409, "battle already ended")
		return
	}
	var correctOption string
	for _, bank := range session.questions {
		if bank.question.Id == submission.QuestionId {
			correctOption = bank.correctOption
			break
		}
	}
	if correctOption == "" {
		session.mu.Unlock()
		writeError(w, http.StatusNotFound, 404, "question not found")
		return
	}
	isCorrect := submission.OptionId == correctOption
	if isCorrect {
		player.correct++
		player.score += 10
	}
	player.index++
	verdict := dtos.AnswerVerdict{
		IsCorrect:     isCorrect,
		CorrectOption: correctOption,
		MyScore:       player.score,
	}
	opponent := session.opponentOf(userId)
	if opponent != nil {
		verdict.OpponentScore = opponent.score
	}
	progress := entities.OpponentProgress{
		QuestionIndex: player.index,
		CorrectCount:  player.correct,
	}
	session.mu.Unlock()

	if opponent != nil {
		opponent.push("OPPONENT_PROGRESS", progress)
	}
	writeOK(w, verdict)
}

func (s *server) handleStartReport(w http.ResponseWriter, r *http.Request) {
	var report dtos.QuestionStartReport
	if !decodeBody(w, r, &report) {
		return
	}
	logging.Debug("question start reported",
		zap.String("battle_id", chi.URLParam(r, "battleId")),
		zap.String("question_id", report.QuestionId),
		zap.Int64("shown_at", report.ShownAt),
	)
	writeOK(w, nil)
}

func (s *server) handleEndBattle(w http.ResponseWriter, r *http.Request) {
	var req dtos.BattleEndRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.finishBattle(w, r, req.Reason, false)
}

func (s *server) handleForfeit(w http.ResponseWriter, r *http.Request) {
	s.finishBattle(w, r, "forfeit", true)
}

// finishBattle settles the session on the first call and replays the
// stored result on any later one, so both players and retried requests
// all see the same outcome.
func (s *server) finishBattle(w http.ResponseWriter, r *http.Request, reason string, forfeit bool) {
	userId := requestUserId(r)
	session, ok := s.battleById(chi.URLParam(r, "battleId"))
	if !ok {
		writeError(w, http.StatusNotFound, 404, "battle not found")
		return
	}

	session.mu.Lock()
	player, member := session.player(userId)
	if !member {
		session.mu.Unlock()
		writeError(w, http.StatusForbidden, 403, "not a participant")
		return
	}
	if session.ended {
		result := session.results[userId]
		session.mu.Unlock()
		writeOK(w, result)
		return
	}
	session.ended = true
	opponent := session.opponentOf(userId)

	var winnerId string
	draw := false
	switch {
	case forfeit:
		winnerId = opponent.userId
	case player.score > opponent.score:
		winnerId = player.userId
	case opponent.score > player.score:
		winnerId = opponent.userId
	default:
		draw = true
	}
	playerScore := player.score
	opponentScore := opponent.score
	session.mu.Unlock()

	loserId := player.userId
	if winnerId == player.userId {
		loserId = opponent.userId
	}
	if !draw {
		s.applyBattleOutcome(winnerId, loserId, false)
	} else {
		s.applyBattleOutcome(player.userId, opponent.userId, true)
	}

	session.mu.Lock()
	session.results[player.userId] = s.resultFor(session.id, winnerId, player.userId, playerScore, opponentScore)
	session.results[opponent.userId] = s.resultFor(session.id, winnerId, opponent.userId, opponentScore, playerScore)
	result := session.results[player.userId]
	opponentResult := session.results[opponent.userId]
	session.mu.Unlock()

	opponent.push("BATTLE_END", opponentResult)
	logging.Info("battle ended",
		zap.String("battle_id", session.id),
		zap.String("winner_id", winnerId),
		zap.String("reason", reason),
	)
	writeOK(w, result)
}

func (s *server) resultFor(battleId, winnerId, userId string, myScore, opponentScore int) dtos.BattleResult {
	record, ok := s.userById(userId)
	result := dtos.BattleResult{
		BattleId:      battleId,
		WinnerId:      winnerId,
		MyScore:       myScore,
		OpponentScore: opponentScore,
	}
	if ok {
		s.mu.Lock()
		result.NewElo = record.stats.Elo
		result.NewTier = record.stats.Tier
		s.mu.Unlock()
	}
	return result
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userId, err := s.authenticate(query.Get("token"))
	if err != nil || userId != query.Get("userId") {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	record, ok := s.userById(userId)
	if !ok {
		http.Error(w, "unknown user", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	battleId := query.Get("battleId")
	if battleId == "" {
		s.serveNotifications(record, conn)
		return
	}
	s.serveBattle(record, conn, battleId)
}

// serveNotifications holds the lobby channel open: MATCH_FOUND and
// INVITE_RECEIVED pushes go out on it, heartbeats come back in.
func (s *server) serveNotifications(record *userRecord, conn *websocket.Conn) {
	record.connMu.Lock()
	if record.conn != nil {
		record.conn.Close()
	}
	record.conn = conn
	record.connMu.Unlock()

	defer func() {
		record.connMu.Lock()
		if record.conn == conn {
			record.conn = nil
		}
		record.connMu.Unlock()
		conn.Close()
	}()

	for {
		var msg pushMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		// Heartbeats and anything else inbound are just drained
	}
}

func (s *server) serveBattle(record *userRecord, conn *websocket.Conn, battleId string) {
	session, ok := s.battleById(battleId)
	if !ok {
		conn.Close()
		return
	}
	session.mu.Lock()
	player, member := session.player(record.user.Id)
	if !member {
		session.mu.Unlock()
		conn.Close()
		return
	}
	player.connMu.Lock()
	player.conn = conn
	player.connMu.Unlock()
	session.mu.Unlock()

	defer func() {
		player.connMu.Lock()
		if player.conn == conn {
			player.conn = nil
		}
		player.connMu.Unlock()
		conn.Close()
	}()

	for {
		var msg pushMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "JOIN_BATTLE":
			s.markJoined(session, player)
		case "HEARTBEAT":
			// drained
		case "CHAT_MESSAGE":
			session.mu.Lock()
			opponent := session.opponentOf(player.userId)
			session.mu.Unlock()
			if opponent != nil {
				opponent.push("CHAT_MESSAGE", chatMessage(session.id, player.userId, msg.Data))
			}
		case "FORFEIT":
			// The REST forfeit call settles the battle; the frame is
			// only an early hint for the opponent's UI.
			logging.Debug("forfeit frame received",
				zap.String("battle_id", session.id),
				zap.String("user_id", player.userId),
			)
		}
	}
}

// chatMessage stamps a relayed chat frame with identity and time. The
// content is sanitized so one player cannot inject markup at the other.
func chatMessage(battleId, senderId string, data interface{}) entities.Message {
	content := ""
	if raw, ok := data.(map[string]interface{}); ok {
		if text, ok := raw["message"].(string); ok {
			content = text
		}
	}
	return entities.Message{
		Id:        uuid.New().String(),
		BattleId:  battleId,
		SenderId:  senderId,
		Content:   utils.SanitizeContent(content),
		CreatedAt: time.Now(),
	}
}

// markJoined starts the battle once both players are on the channel.
func (s *server) markJoined(session *battleSession, player *battlePlayer) {
	session.mu.Lock()
	player.joined = true
	allJoined := true
	for _, p := range session.players {
		if !p.joined {
			allJoined = false
			break
		}
	}
	start := allJoined && !session.started
	if start {
		session.started = true
	}
	players := make([]*battlePlayer, 0, len(session.players))
	for _, p := range session.players {
		players = append(players, p)
	}
	session.mu.Unlock()

	if !start {
		return
	}
	for _, p := range players {
		p.push("BATTLE_START", map[string]interface{}{
			"battleId":    session.id,
			"durationSec": int(session.duration.Seconds()),
		})
	}
	logging.Info("battle started", zap.String("battle_id", session.id))
}
