package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/studyarena/pkarena/internal/api"
	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
	"github.com/studyarena/pkarena/internal/store"
	"github.com/studyarena/pkarena/internal/ws"
	"github.com/studyarena/pkarena/pkg/logging"
	"go.uber.org/zap"
)

// Arena manages the pre-battle lobby: matchmaking queue, incoming
// invites, friend lists, rankings and user search.
type Arena struct {
	api      *api.Client
	ws       *ws.Client
	store    *store.Store
	notifier Notifier
	cfg      Config

	navigate        func(battleId string)
	onSearchTick    func(elapsed time.Duration)
	onSearchResults func(results []dtos.UserSearchResult)
	onInvite        func(invite dtos.BattleInvite)

	mu          sync.Mutex
	stopTick    chan struct{}
	searchTimer *time.Timer
	invites     map[string]*time.Timer
	unsubs      []func()
}

func NewArena(
	apiClient *api.Client,
	wsClient *ws.Client,
	st *store.Store,
	notifier Notifier,
	cfg Config,
) *Arena {
	return &Arena{
		api:      apiClient,
		ws:       wsClient,
		store:    st,
		notifier: notifier,
		cfg:      cfg,
		invites:  make(map[string]*time.Timer),
	}
}

func (a *Arena) OnNavigate(fn func(battleId string)) {
	a.navigate = fn
}

func (a *Arena) OnSearchTick(fn func(elapsed time.Duration)) {
	a.onSearchTick = fn
}

func (a *Arena) OnSearchResults(fn func(results []dtos.UserSearchResult)) {
	a.onSearchResults = fn
}

func (a *Arena) OnInvite(fn func(invite dtos.BattleInvite)) {
	a.onInvite = fn
}

// Connect opens the notification channel and wires the push handlers.
func (a *Arena) Connect(ctx context.Context) error {
	a.mu.Lock()
	a.unsubs = append(a.unsubs,
		a.ws.On(string(ws.TypeMatchFound), a.handleMatchFound),
		a.ws.On(string(ws.TypeInviteReceived), a.handleInvite),
	)
	a.mu.Unlock()
	return a.ws.Connect(ctx, "")
}

// StartQuickMatch joins the matchmaking queue and starts the elapsed
// time display.
func (a *Arena) StartQuickMatch(ctx context.Context, mode string) error {
	if err := a.api.JoinQueue(ctx, mode); err != nil {
		a.notifier.Toast("Failed to join the matchmaking queue")
		return err
	}
	start := time.Now()
	a.store.Update(func(s *store.State) {
		s.Matchmaking = entities.MatchmakingState{
			Status:    entities.MatchmakingSearching,
			Mode:      mode,
			StartTime: start,
		}
	})
	a.startSearchTicker(start)
	logging.Info("matchmaking started", zap.String("mode", mode))
	return nil
}

// CancelMatching leaves the queue. Calling it while not matching is a
// no-op: no error, state stays idle.
func (a *Arena) CancelMatching(ctx context.Context) error {
	if a.store.Get().Matchmaking.Status != entities.MatchmakingSearching {
		return nil
	}
	if err := a.api.LeaveQueue(ctx); err != nil {
		a.notifier.Toast("Failed to cancel matchmaking")
		return err
	}
	a.stopSearchTicker()
	a.store.Update(func(s *store.State) {
		s.Matchmaking = entities.MatchmakingState{Status: entities.MatchmakingIdle}
	})
	logging.Info("matchmaking cancelled")
	return nil
}

func (a *Arena) handleMatchFound(msg ws.Message) {
	var found dtos.MatchFound
	if err := json.Unmarshal(msg.Data, &found); err != nil {
		logging.Warn("malformed match found push", zap.Error(err))
		return
	}
	a.stopSearchTicker()
	a.store.Update(func(s *store.State) {
		s.Matchmaking.Status = entities.MatchmakingFound
		s.Battle.BattleId = found.BattleId
		s.Battle.Opponent = found.Opponent
	})
	a.notifier.Toast(fmt.Sprintf(
		"Matched with %s (ELO %.0f, %s)",
		found.Opponent.Nickname, found.Opponent.Elo, found.Opponent.Tier,
	))
	// Short celebration pause before moving to the battle view
	time.AfterFunc(a.cfg.MatchFoundDelay, func() {
		a.store.Update(func(s *store.State) {
			s.Matchmaking = entities.MatchmakingState{Status: entities.MatchmakingIdle}
		})
		if a.navigate != nil {
			a.navigate(found.BattleId)
		}
	})
}

func (a *Arena) handleInvite(msg ws.Message) {
	var invite dtos.BattleInvite
	if err := json.Unmarshal(msg.Data, &invite); err != nil {
		logging.Warn("malformed invite push", zap.Error(err))
		return
	}
	a.mu.Lock()
	// UI-side expiry only; the server keeps its own invite lifetime
	a.invites[invite.InviteId] = time.AfterFunc(a.cfg.InviteTTL, func() {
		a.expireInvite(invite.InviteId)
	})
	a.mu.Unlock()

	a.notifier.Toast(fmt.Sprintf("%s invited you to a battle", invite.FromUser.Nickname))
	if a.onInvite != nil {
		a.onInvite(invite)
	}
}

func (a *Arena) expireInvite(inviteId string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if timer, ok := a.invites[inviteId]; ok {
		timer.Stop()
		delete(a.invites, inviteId)
	}
}

// PendingInvites lists invite ids still shown in the UI.
func (a *Arena) PendingInvites() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.invites))
	for id := range a.invites {
		ids = append(ids, id)
	}
	return ids
}

func (a *Arena) AcceptInvite(ctx context.Context, inviteId string) error {
	a.expireInvite(inviteId)
	found, err := a.api.AcceptInvite(ctx, inviteId)
	if err != nil {
		a.notifier.Toast("Failed to accept the invite")
		return err
	}
	a.store.Update(func(s *store.State) {
		s.Battle.BattleId = found.BattleId
		s.Battle.Opponent = found.Opponent
	})
	if a.navigate != nil {
		a.navigate(found.BattleId)
	}
	return nil
}

func (a *Arena) RejectInvite(ctx context.Context, inviteId string) error {
	a.expireInvite(inviteId)
	return a.api.RejectInvite(ctx, inviteId)
}

// Search debounces the lookup so a fast typist issues one query, not
// one per keystroke.
func (a *Arena) Search(query string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.searchTimer != nil {
		a.searchTimer.Stop()
	}
	a.searchTimer = time.AfterFunc(a.cfg.SearchDebounce, func() {
		results, err := a.api.SearchUsers(context.Background(), query)
		if err != nil {
			logging.Warn("user search failed", zap.Error(err))
			return
		}
		if a.onSearchResults != nil {
			a.onSearchResults(results)
		}
	})
}

func (a *Arena) LoadFriends(ctx context.Context) error {
	friends, err := a.api.Friends(ctx)
	if err != nil {
		return err
	}
	requests, err := a.api.FriendRequests(ctx)
	if err != nil {
		return err
	}
	a.store.Update(func(s *store.State) {
		s.Friends = friends
		s.Requests = requests
	})
	return nil
}

func (a *Arena) LoadRankings(ctx context.Context, tier string, limit int) error {
	rankings, err := a.api.Rankings(ctx, tier, limit)
	if err != nil {
		return err
	}
	a.store.Update(func(s *store.State) {
		s.Rankings = rankings.Entries
	})
	return nil
}

func (a *Arena) LoadStats(ctx context.Context) error {
	stats, err := a.api.UserStats(ctx)
	if err != nil {
		return err
	}
	a.store.Update(func(s *store.State) {
		s.Stats = stats
	})
	return nil
}

// Close tears down lobby-side timers and handlers. The websocket
// itself is owned by the caller.
func (a *Arena) Close() {
	a.stopSearchTicker()
	a.mu.Lock()
	if a.searchTimer != nil {
		a.searchTimer.Stop()
		a.searchTimer = nil
	}
	for id, timer := range a.invites {
		timer.Stop()
		delete(a.invites, id)
	}
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

func (a *Arena) startSearchTicker(start time.Time) {
	a.stopSearchTicker()
	stop := make(chan struct{})
	a.mu.Lock()
	a.stopTick = stop
	a.mu.Unlock()

	if a.onSearchTick != nil {
		a.onSearchTick(0)
	}
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if a.onSearchTick != nil {
					a.onSearchTick(time.Since(start).Round(time.Second))
				}
			}
		}
	}()
}

func (a *Arena) stopSearchTicker() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopTick != nil {
		close(a.stopTick)
		a.stopTick = nil
	}
}
