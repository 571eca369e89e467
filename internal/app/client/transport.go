package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/studyarena/pkarena/internal/api"
	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
	"github.com/studyarena/pkarena/internal/ws"
	"github.com/studyarena/pkarena/pkg/logging"
	"go.uber.org/zap"
)

// Transport abstracts where battle state comes from. The realtime
// transport rides the websocket channel; the snapshot transport pulls
// everything over REST once and has no live opponent feed. One
// orchestrator serves both, selected at construction time.
type Transport interface {
	LoadBattle(ctx context.Context, battleId string) (dtos.BattleInfoResponse, error)
	AwaitStart(ctx context.Context) error
	OpponentProgress() <-chan entities.OpponentProgress
	Forfeit(battleId string)
	Chat(battleId, text string)
	Close()
}

type RealtimeTransport struct {
	api *api.Client
	ws  *ws.Client

	progress  chan entities.OpponentProgress
	started   chan struct{}
	startOnce sync.Once
	unsubs    []func()
}

func NewRealtimeTransport(apiClient *api.Client, wsClient *ws.Client) *RealtimeTransport {
	return &RealtimeTransport{
		api:      apiClient,
		ws:       wsClient,
		progress: make(chan entities.OpponentProgress, 8),
		started:  make(chan struct{}),
	}
}

func (t *RealtimeTransport) LoadBattle(ctx context.Context, battleId string) (dtos.BattleInfoResponse, error) {
	t.unsubs = append(t.unsubs,
		t.ws.On(string(ws.TypeBattleStart), func(ws.Message) {
			t.startOnce.Do(func() { close(t.started) })
		}),
		t.ws.On(string(ws.TypeOpponentProgress), func(msg ws.Message) {
			var progress entities.OpponentProgress
			if err := json.Unmarshal(msg.Data, &progress); err != nil {
				logging.Warn("malformed opponent progress", zap.Error(err))
				return
			}
			select {
			case t.progress <- progress:
			default:
				// Only the latest progress matters to the bar
			}
		}),
	)

	if err := t.ws.Connect(ctx, battleId); err != nil {
		return dtos.BattleInfoResponse{}, err
	}
	if err := t.ws.Send(ws.TypeJoinBattle, map[string]string{"battleId": battleId}); err != nil {
		logging.Warn("failed to announce join", zap.Error(err))
	}
	return t.api.BattleInfo(ctx, battleId)
}

func (t *RealtimeTransport) AwaitStart(ctx context.Context) error {
	select {
	case <-t.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *RealtimeTransport) OpponentProgress() <-chan entities.OpponentProgress {
	return t.progress
}

func (t *RealtimeTransport) Forfeit(battleId string) {
	if err := t.ws.Send(ws.TypeForfeit, map[string]string{"battleId": battleId}); err != nil {
		logging.Warn("failed to send forfeit", zap.Error(err))
	}
}

func (t *RealtimeTransport) Chat(battleId, text string) {
	if err := t.ws.Send(ws.TypeChatMessage, map[string]string{
		"battleId": battleId,
		"message":  text,
	}); err != nil {
		logging.Warn("failed to send chat message", zap.Error(err))
	}
}

func (t *RealtimeTransport) Close() {
	for _, unsub := range t.unsubs {
		unsub()
	}
	t.unsubs = nil
	t.ws.Disconnect()
}

// SnapshotTransport drives a battle from a one-shot REST snapshot.
// There is no start signal to wait for and no opponent feed.
type SnapshotTransport struct {
	api *api.Client
}

func NewSnapshotTransport(apiClient *api.Client) *SnapshotTransport {
	return &SnapshotTransport{api: apiClient}
}

func (t *SnapshotTransport) LoadBattle(ctx context.Context, battleId string) (dtos.BattleInfoResponse, error) {
	return t.api.BattleInfo(ctx, battleId)
}

func (t *SnapshotTransport) AwaitStart(ctx context.Context) error {
	return ctx.Err()
}

func (t *SnapshotTransport) OpponentProgress() <-chan entities.OpponentProgress {
	// Receiving from a nil channel blocks until the battle context ends
	return nil
}

func (t *SnapshotTransport) Forfeit(string) {}

func (t *SnapshotTransport) Chat(string, string) {}

func (t *SnapshotTransport) Close() {}
