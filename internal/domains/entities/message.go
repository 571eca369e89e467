package entities

import "time"

type Message struct {
	Id        string    `json:"id"`
	BattleId  string    `json:"battleId"`
	SenderId  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
