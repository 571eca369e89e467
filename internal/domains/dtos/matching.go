package dtos

import "github.com/studyarena/pkarena/internal/domains/entities"

type JoinQueueRequest struct {
	Mode string `json:"mode"`
}

type MatchFound struct {
	BattleId string            `json:"battleId"`
	Opponent entities.Opponent `json:"opponent"`
}
