// Package store holds the client-side mirror of server state with
// subscribe/notify semantics. Last write wins; subscribers receive a
// snapshot and must not mutate slices it shares with the store.
package store

import (
	"sync"

	"github.com/studyarena/pkarena/internal/domains/entities"
)

type State struct {
	Battle      entities.BattleState
	Matchmaking entities.MatchmakingState
	Friends     []entities.Friend
	Requests    []entities.FriendRequest
	Rankings    []entities.RankingEntry
	Stats       entities.UserStats
}

type Subscriber func(State)

type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]Subscriber
	nextId int
}

func New() *Store {
	return &Store{
		state: State{
			Battle:      entities.BattleState{Status: entities.BattleIdle},
			Matchmaking: entities.MatchmakingState{Status: entities.MatchmakingIdle},
		},
		subs: make(map[int]Subscriber),
	}
}

func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update applies the mutation and synchronously notifies every
// subscriber with the new snapshot.
func (s *Store) Update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	subs := make([]Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
}

// Subscribe registers a listener and returns its unsubscribe function.
func (s *Store) Subscribe(sub Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextId
	s.nextId++
	s.subs[id] = sub
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
