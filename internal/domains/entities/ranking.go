package entities

type RankingEntry struct {
	Rank     int     `json:"rank"`
	UserId   string  `json:"userId"`
	Nickname string  `json:"nickname"`
	Elo      float64 `json:"elo"`
	Tier     string  `json:"tier"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
}
