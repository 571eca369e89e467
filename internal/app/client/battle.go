package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/studyarena/pkarena/internal/api"
	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
	"github.com/studyarena/pkarena/internal/store"
	"github.com/studyarena/pkarena/pkg/logging"
	"github.com/studyarena/pkarena/pkg/utils"
	"go.uber.org/zap"
)

const (
	minBattleDuration = 5 * time.Minute
	maxBattleDuration = 20 * time.Minute
	perQuestionBudget = time.Minute
)

// Battle drives one battle session from initialization to the result:
// idle → ready → inBattle → ended. All three termination paths (last
// answer, timer expiry, forfeit) converge on endBattle.
type Battle struct {
	api       *api.Client
	store     *store.Store
	transport Transport
	view      BattleView
	notifier  Notifier
	cfg       Config

	mu          sync.Mutex
	battleId    string
	selected    string
	questionAt  time.Time
	started     bool
	submitting  bool
	ended       bool
	cancelClock context.CancelFunc
}

func NewBattle(
	apiClient *api.Client,
	st *store.Store,
	transport Transport,
	view BattleView,
	notifier Notifier,
	cfg Config,
) *Battle {
	return &Battle{
		api:       apiClient,
		store:     st,
		transport: transport,
		view:      view,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Start loads the battle, waits for the start signal and renders the
// first question. It returns once the battle is live.
func (b *Battle) Start(ctx context.Context, battleId string) error {
	if !b.api.Session().Active() {
		return api.ErrNoSession
	}
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrBattleActive
	}
	b.started = true
	b.battleId = battleId
	b.mu.Unlock()

	info, err := b.transport.LoadBattle(ctx, battleId)
	if err != nil {
		return fmt.Errorf("failed to load battle: %w", err)
	}
	b.store.Update(func(s *store.State) {
		s.Battle = entities.BattleState{
			BattleId:  battleId,
			Status:    entities.BattleReady,
			Questions: info.Questions,
			Opponent:  info.Opponent,
		}
	})

	// Best-effort opponent card prefetch; never blocks battle start
	go func() {
		if _, err := b.api.UserRanking(context.Background(), info.Opponent.Id); err != nil {
			logging.Debug("opponent prefetch failed", zap.Error(err))
		}
	}()

	if err := b.transport.AwaitStart(ctx); err != nil {
		return fmt.Errorf("battle never started: %w", err)
	}

	b.store.Update(func(s *store.State) {
		s.Battle.Status = entities.BattleInBattle
	})

	clockCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancelClock = cancel
	b.mu.Unlock()
	go b.runClock(clockCtx, battleDuration(info))
	go b.watchOpponent(clockCtx)

	b.showQuestion(ctx, 0)
	logging.Info("battle started",
		zap.String("battle_id", battleId),
		zap.Int("questions", len(info.Questions)),
	)
	return nil
}

// battleDuration prefers the server-supplied duration. A zero-or-
// negative value from the server means the battle already expired;
// the question count heuristic only covers a missing field.
func battleDuration(info dtos.BattleInfoResponse) time.Duration {
	if info.DurationSec != 0 {
		return time.Duration(info.DurationSec) * time.Second
	}
	duration := time.Duration(len(info.Questions)) * perQuestionBudget
	if duration < minBattleDuration {
		return minBattleDuration
	}
	if duration > maxBattleDuration {
		return maxBattleDuration
	}
	return duration
}

func (b *Battle) runClock(ctx context.Context, remaining time.Duration) {
	if remaining <= 0 {
		b.timeUp()
		return
	}
	timer := utils.NewTimer(remaining)
	defer timer.Stop()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C():
			b.view.UpdateClock(0)
			b.timeUp()
			return
		case <-ticker.C:
			b.view.UpdateClock(timer.TimeRemaining().Round(time.Second))
		}
	}
}

func (b *Battle) timeUp() {
	b.notifier.Toast("Time's up")
	b.endBattle("timeout")
}

func (b *Battle) watchOpponent(ctx context.Context) {
	progress := b.transport.OpponentProgress()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-progress:
			if !ok {
				return
			}
			b.store.Update(func(s *store.State) {
				s.Battle.OpponentProgress = p
			})
			b.view.UpdateOpponentProgress(p)
		}
	}
}

func (b *Battle) showQuestion(ctx context.Context, index int) {
	state := b.store.Get()
	questions := state.Battle.Questions
	if index >= len(questions) {
		b.endBattle("completed")
		return
	}
	question := questions[index]
	question.Content = utils.SanitizeContent(question.Content)

	b.mu.Lock()
	b.selected = ""
	b.questionAt = time.Now()
	battleId := b.battleId
	b.mu.Unlock()

	b.store.Update(func(s *store.State) {
		s.Battle.CurrentQuestionIndex = index
	})
	b.view.RenderQuestion(index, len(questions), question)

	// Advisory anti-cheat timing report; failures are swallowed
	go func() {
		report := dtos.QuestionStartReport{
			QuestionId: question.Id,
			ShownAt:    time.Now().UnixMilli(),
		}
		if err := b.api.ReportQuestionStart(ctx, battleId, report); err != nil {
			logging.Debug("question start report failed", zap.Error(err))
		}
	}()
}

// Select records the user's choice. Selecting again replaces the
// previous choice.
func (b *Battle) Select(optionId string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return
	}
	b.selected = optionId
}

// Submit posts the current selection and advances the battle. An empty
// selection is rejected locally without any network call.
func (b *Battle) Submit(ctx context.Context) error {
	b.mu.Lock()
	if b.ended {
		b.mu.Unlock()
		return ErrBattleEnded
	}
	if b.submitting {
		b.mu.Unlock()
		return ErrSubmitting
	}
	selected := b.selected
	questionAt := b.questionAt
	battleId := b.battleId
	if selected == "" {
		b.mu.Unlock()
		b.notifier.Toast("Select an option first")
		return ErrNoSelection
	}
	b.submitting = true
	b.mu.Unlock()

	state := b.store.Get()
	index := state.Battle.CurrentQuestionIndex
	question := state.Battle.Questions[index]
	elapsed := time.Since(questionAt)

	verdict, err := b.api.SubmitAnswer(ctx, battleId, dtos.AnswerSubmission{
		QuestionId: question.Id,
		OptionId:   selected,
		ElapsedMs:  elapsed.Milliseconds(),
	})
	if err != nil {
		b.mu.Lock()
		b.submitting = false
		b.mu.Unlock()
		b.notifier.Toast("Failed to submit answer")
		return err
	}

	b.store.Update(func(s *store.State) {
		s.Battle.Answers = append(s.Battle.Answers, entities.Answer{
			QuestionId: question.Id,
			OptionId:   selected,
			IsCorrect:  verdict.IsCorrect,
			Elapsed:    elapsed,
		})
		s.Battle.MyScore = verdict.MyScore
	})
	b.view.ShowVerdict(verdict.IsCorrect, verdict.CorrectOption)

	// Brief verdict flash before moving on
	select {
	case <-ctx.Done():
		b.mu.Lock()
		b.submitting = false
		b.mu.Unlock()
		return ctx.Err()
	case <-time.After(b.cfg.VerdictFlash):
	}

	b.mu.Lock()
	b.submitting = false
	b.mu.Unlock()

	if index+1 >= len(state.Battle.Questions) {
		b.endBattle("completed")
		return nil
	}
	b.showQuestion(ctx, index+1)
	return nil
}

// Forfeit asks for confirmation, then concedes the battle.
func (b *Battle) Forfeit() error {
	b.mu.Lock()
	if b.ended {
		b.mu.Unlock()
		return ErrBattleEnded
	}
	battleId := b.battleId
	b.mu.Unlock()

	if !b.notifier.Confirm("Forfeit this battle?") {
		return nil
	}
	b.transport.Forfeit(battleId)
	b.endBattle("forfeit")
	return nil
}

// Chat forwards a message to the opponent, best effort.
func (b *Battle) Chat(text string) {
	b.mu.Lock()
	battleId := b.battleId
	ended := b.ended
	b.mu.Unlock()
	if ended {
		return
	}
	b.transport.Chat(battleId, text)
}

// endBattle is the single convergence point for every termination
// path. It runs at most once.
func (b *Battle) endBattle(reason string) {
	b.mu.Lock()
	if b.ended {
		b.mu.Unlock()
		return
	}
	b.ended = true
	battleId := b.battleId
	cancel := b.cancelClock
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	// Fresh context: the battle context may already be cancelled
	notifyCtx, cancelNotify := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelNotify()

	var result dtos.BattleResult
	var err error
	if reason == "forfeit" {
		result, err = b.api.Forfeit(notifyCtx, battleId)
	} else {
		result, err = b.api.EndBattle(notifyCtx, battleId, reason)
	}
	if err != nil {
		logging.Warn("failed to notify battle end",
			zap.String("battle_id", battleId),
			zap.Error(err),
		)
	}

	b.transport.Close()
	b.applyResult(result)
	b.view.BattleEnded(result, reason)
	logging.Info("battle ended",
		zap.String("battle_id", battleId),
		zap.String("reason", reason),
	)
}

// applyResult commits the battle outcome and optimistically bumps the
// cached stats. The next authoritative stats fetch overwrites them.
func (b *Battle) applyResult(result dtos.BattleResult) {
	userId := b.api.Session().UserId()
	b.store.Update(func(s *store.State) {
		s.Battle.Status = entities.BattleEnded
		if result.BattleId == "" {
			return
		}
		if result.NewElo > 0 {
			s.Stats.Elo = result.NewElo
			s.Stats.Tier = utils.TierForElo(result.NewElo)
		}
		if result.WinnerId == userId && userId != "" {
			s.Stats.Wins++
			s.Stats.Streak++
		} else {
			s.Stats.Losses++
			s.Stats.Streak = 0
		}
		if total := s.Stats.Wins + s.Stats.Losses; total > 0 {
			s.Stats.WinRate = float64(s.Stats.Wins) / float64(total)
		}
	})
}
