package entities

import "time"

type Friend struct {
	Id       string  `json:"id"`
	Nickname string  `json:"nickname"`
	Avatar   string  `json:"avatar"`
	Online   bool    `json:"online"`
	Elo      float64 `json:"elo"`
	Tier     string  `json:"tier"`
}

type FriendRequest struct {
	Id         string    `json:"id"`
	FromUserId string    `json:"fromUserId"`
	ToUserId   string    `json:"toUserId"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}
