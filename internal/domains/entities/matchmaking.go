package entities

import "time"

type MatchmakingStatus string

const (
	MatchmakingIdle      MatchmakingStatus = "idle"
	MatchmakingSearching MatchmakingStatus = "searching"
	MatchmakingFound     MatchmakingStatus = "found"
)

type MatchmakingState struct {
	Status    MatchmakingStatus
	Mode      string
	StartTime time.Time
}
