package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
	"github.com/studyarena/pkarena/internal/store"
	"github.com/studyarena/pkarena/internal/ws"
)

func wsMessage(t *testing.T, msgType ws.MessageType, payload interface{}) ws.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return ws.Message{Type: msgType, Data: data, Timestamp: time.Now()}
}

func newTestArena(t *testing.T, handler http.Handler) (*Arena, *store.Store, *fakeView) {
	t.Helper()
	st := store.New()
	view := newFakeView()
	arena := NewArena(newTestApi(t, handler, true), newWsStub(), st, view, testConfig())
	t.Cleanup(arena.Close)
	return arena, st, view
}

func TestQuickMatchEntersSearching(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pk/matching/join", func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(w, nil)
	})
	arena, st, _ := newTestArena(t, mux)

	var ticks atomic.Int32
	arena.OnSearchTick(func(time.Duration) { ticks.Add(1) })

	require.NoError(t, arena.StartQuickMatch(context.Background(), "standard"))
	state := st.Get()
	assert.Equal(t, entities.MatchmakingSearching, state.Matchmaking.Status)
	assert.Equal(t, "standard", state.Matchmaking.Mode)
	assert.False(t, state.Matchmaking.StartTime.IsZero())
	// The elapsed display starts at zero immediately
	assert.GreaterOrEqual(t, ticks.Load(), int32(1))
}

func TestCancelWhileIdleIsNoop(t *testing.T) {
	var leaves atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/pk/matching/leave", func(w http.ResponseWriter, r *http.Request) {
		leaves.Add(1)
		okEnvelope(w, nil)
	})
	arena, st, _ := newTestArena(t, mux)

	require.NoError(t, arena.CancelMatching(context.Background()))
	assert.Equal(t, int32(0), leaves.Load())
	assert.Equal(t, entities.MatchmakingIdle, st.Get().Matchmaking.Status)
}

func TestCancelWhileSearchingLeavesQueue(t *testing.T) {
	var leaves atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/pk/matching/join", func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(w, nil)
	})
	mux.HandleFunc("/pk/matching/leave", func(w http.ResponseWriter, r *http.Request) {
		leaves.Add(1)
		okEnvelope(w, nil)
	})
	arena, st, _ := newTestArena(t, mux)

	require.NoError(t, arena.StartQuickMatch(context.Background(), "standard"))
	require.NoError(t, arena.CancelMatching(context.Background()))
	assert.Equal(t, int32(1), leaves.Load())
	assert.Equal(t, entities.MatchmakingIdle, st.Get().Matchmaking.Status)
}

func TestMatchFoundNavigatesAfterDelay(t *testing.T) {
	arena, st, view := newTestArena(t, http.NewServeMux())

	navigated := make(chan string, 1)
	arena.OnNavigate(func(battleId string) { navigated <- battleId })

	arena.handleMatchFound(wsMessage(t, ws.TypeMatchFound, dtos.MatchFound{
		BattleId: "b-42",
		Opponent: entities.Opponent{Id: "u-them", Nickname: "Them", Elo: 1280, Tier: "GOLD"},
	}))

	state := st.Get()
	assert.Equal(t, entities.MatchmakingFound, state.Matchmaking.Status)
	assert.Equal(t, "b-42", state.Battle.BattleId)
	assert.Equal(t, "Them", state.Battle.Opponent.Nickname)
	assert.NotEmpty(t, view.lastToasts())

	select {
	case battleId := <-navigated:
		assert.Equal(t, "b-42", battleId)
	case <-time.After(time.Second):
		t.Fatal("navigation never happened")
	}
	assert.Eventually(t, func() bool {
		return st.Get().Matchmaking.Status == entities.MatchmakingIdle
	}, time.Second, 5*time.Millisecond)
}

func TestMalformedMatchFoundIgnored(t *testing.T) {
	arena, st, _ := newTestArena(t, http.NewServeMux())
	arena.handleMatchFound(ws.Message{Type: ws.TypeMatchFound, Data: []byte("{broken")})
	assert.Equal(t, entities.MatchmakingIdle, st.Get().Matchmaking.Status)
}

func TestInviteExpiresLocally(t *testing.T) {
	arena, _, view := newTestArena(t, http.NewServeMux())

	var invites []dtos.BattleInvite
	var mu sync.Mutex
	arena.OnInvite(func(invite dtos.BattleInvite) {
		mu.Lock()
		defer mu.Unlock()
		invites = append(invites, invite)
	})

	arena.handleInvite(wsMessage(t, ws.TypeInviteReceived, dtos.BattleInvite{
		InviteId: "inv-1",
		FromUser: entities.Opponent{Id: "u-them", Nickname: "Them"},
		Mode:     "standard",
	}))

	assert.Equal(t, []string{"inv-1"}, arena.PendingInvites())
	mu.Lock()
	assert.Len(t, invites, 1)
	mu.Unlock()
	assert.NotEmpty(t, view.lastToasts())

	assert.Eventually(t, func() bool {
		return len(arena.PendingInvites()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestAcceptInviteNavigates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pk/invites/inv-1/accept", func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(w, dtos.MatchFound{
			BattleId: "b-7",
			Opponent: entities.Opponent{Id: "u-them"},
		})
	})
	arena, st, _ := newTestArena(t, mux)

	navigated := make(chan string, 1)
	arena.OnNavigate(func(battleId string) { navigated <- battleId })

	require.NoError(t, arena.AcceptInvite(context.Background(), "inv-1"))
	assert.Equal(t, "b-7", <-navigated)
	assert.Equal(t, "b-7", st.Get().Battle.BattleId)
}

func TestSearchDebounced(t *testing.T) {
	var hits atomic.Int32
	var lastQuery atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/pk/friends/search", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		lastQuery.Store(r.URL.Query().Get("q"))
		okEnvelope(w, []dtos.UserSearchResult{})
	})
	arena, _, _ := newTestArena(t, mux)

	results := make(chan []dtos.UserSearchResult, 1)
	arena.OnSearchResults(func(r []dtos.UserSearchResult) { results <- r })

	// Three keystrokes in quick succession: only the last one queries
	arena.Search("a")
	arena.Search("al")
	arena.Search("ali")

	select {
	case <-results:
	case <-time.After(time.Second):
		t.Fatal("search results never arrived")
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "ali", lastQuery.Load())
}

func TestLoadersPopulateStore(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pk/friends", func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(w, []entities.Friend{{Id: "u-f", Nickname: "Friend", Online: true}})
	})
	mux.HandleFunc("/pk/friends/requests", func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(w, []entities.FriendRequest{{Id: "req-1", FromUserId: "u-x", Status: "pending"}})
	})
	mux.HandleFunc("/pk/rankings", func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(w, dtos.RankingsResponse{
			Entries: []entities.RankingEntry{{Rank: 1, UserId: "u-top", Elo: 1900}},
			Total:   1,
		})
	})
	mux.HandleFunc("/user/stats", func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(w, entities.UserStats{UserId: "u-me", Elo: 1320, Tier: "GOLD", Wins: 3})
	})
	arena, st, _ := newTestArena(t, mux)

	ctx := context.Background()
	require.NoError(t, arena.LoadFriends(ctx))
	require.NoError(t, arena.LoadRankings(ctx, "", 10))
	require.NoError(t, arena.LoadStats(ctx))

	state := st.Get()
	require.Len(t, state.Friends, 1)
	assert.Equal(t, "Friend", state.Friends[0].Nickname)
	require.Len(t, state.Requests, 1)
	assert.Equal(t, "req-1", state.Requests[0].Id)
	require.Len(t, state.Rankings, 1)
	assert.Equal(t, "u-top", state.Rankings[0].UserId)
	assert.Equal(t, float64(1320), state.Stats.Elo)
}
