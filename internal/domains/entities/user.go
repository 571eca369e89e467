package entities

import (
	"time"
)

type User struct {
	Id        string    `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	Elo       float64   `json:"elo"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserStats struct {
	UserId  string  `json:"userId"`
	Elo     float64 `json:"elo"`
	Tier    string  `json:"tier"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"winRate"`
	Streak  int     `json:"streak"`
}
