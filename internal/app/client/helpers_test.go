package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/studyarena/pkarena/internal/api"
	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
	"github.com/studyarena/pkarena/internal/ws"
)

func okEnvelope(w http.ResponseWriter, data interface{}) {
	payload, _ := json.Marshal(data)
	json.NewEncoder(w).Encode(dtos.Response{Code: 200, Message: "success", Data: payload})
}

func testConfig() Config {
	return Config{
		MatchFoundDelay: 5 * time.Millisecond,
		VerdictFlash:    time.Millisecond,
		InviteTTL:       20 * time.Millisecond,
		SearchDebounce:  10 * time.Millisecond,
	}
}

func newTestApi(t *testing.T, handler http.Handler, loggedIn bool) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	session := api.NewSessionStore(filepath.Join(t.TempDir(), "session.json"))
	if loggedIn {
		require.NoError(t, session.SetSession(entities.Session{
			AccessToken:  "access",
			RefreshToken: "refresh",
			User:         entities.User{Id: "u-me", Nickname: "Me"},
		}))
	}
	client, err := api.NewClient(api.Config{
		BaseUrl:      srv.URL,
		RetryBackoff: time.Millisecond,
	}, session)
	require.NoError(t, err)
	return client
}

// fakeView implements both Notifier and BattleView, recording every
// callback for assertions.
type fakeView struct {
	mu            sync.Mutex
	toasts        []string
	confirmAnswer bool
	rendered      []int
	contents      []string
	verdicts      []bool
	clockTicks    int
	progress      []entities.OpponentProgress
	result        dtos.BattleResult
	reason        string
	ended         chan struct{}
}

func newFakeView() *fakeView {
	return &fakeView{confirmAnswer: true, ended: make(chan struct{})}
}

func (v *fakeView) Toast(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.toasts = append(v.toasts, message)
}

func (v *fakeView) Confirm(string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.confirmAnswer
}

func (v *fakeView) RenderQuestion(index, total int, question entities.Question) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rendered = append(v.rendered, index)
	v.contents = append(v.contents, question.Content)
}

func (v *fakeView) ShowVerdict(correct bool, correctOption string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verdicts = append(v.verdicts, correct)
}

func (v *fakeView) UpdateClock(time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clockTicks++
}

func (v *fakeView) UpdateOpponentProgress(progress entities.OpponentProgress) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.progress = append(v.progress, progress)
}

func (v *fakeView) BattleEnded(result dtos.BattleResult, reason string) {
	v.mu.Lock()
	v.result = result
	v.reason = reason
	v.mu.Unlock()
	close(v.ended)
}

func (v *fakeView) waitEnded(t *testing.T) (dtos.BattleResult, string) {
	t.Helper()
	select {
	case <-v.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("battle never ended")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.result, v.reason
}

func (v *fakeView) renderedIndexes() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]int(nil), v.rendered...)
}

func (v *fakeView) lastToasts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.toasts...)
}

// fakeTransport serves a canned battle and records pushes.
type fakeTransport struct {
	info     dtos.BattleInfoResponse
	progress chan entities.OpponentProgress

	mu       sync.Mutex
	forfeits []string
	chats    []string
	closed   bool
}

func newFakeTransport(info dtos.BattleInfoResponse) *fakeTransport {
	return &fakeTransport{
		info:     info,
		progress: make(chan entities.OpponentProgress, 4),
	}
}

func (f *fakeTransport) LoadBattle(context.Context, string) (dtos.BattleInfoResponse, error) {
	return f.info, nil
}

func (f *fakeTransport) AwaitStart(context.Context) error { return nil }

func (f *fakeTransport) OpponentProgress() <-chan entities.OpponentProgress {
	return f.progress
}

func (f *fakeTransport) Forfeit(battleId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forfeits = append(f.forfeits, battleId)
}

func (f *fakeTransport) Chat(battleId, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, text)
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeTransport) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func twoQuestionBattle() dtos.BattleInfoResponse {
	return dtos.BattleInfoResponse{
		BattleId:    "b-1",
		Mode:        "standard",
		DurationSec: 300,
		Questions: []entities.Question{
			{
				Id:      "q-1",
				Content: "What is 1+1?",
				Options: []entities.Option{
					{Id: "a", Label: "A", Content: "1"},
					{Id: "b", Label: "B", Content: "2"},
				},
			},
			{
				Id:      "q-2",
				Content: "What is 2+2?",
				Options: []entities.Option{
					{Id: "a", Label: "A", Content: "4"},
					{Id: "b", Label: "B", Content: "5"},
				},
			},
		},
		Opponent: entities.Opponent{Id: "u-them", Nickname: "Them", Elo: 1280, Tier: "GOLD"},
	}
}

// newWsStub returns a websocket client that is never connected; arena
// tests only exercise its listener registry.
func newWsStub() *ws.Client {
	return ws.NewClient(ws.Config{Url: "ws://127.0.0.1:1"})
}
