package entities

import "time"

type BattleStatus string

const (
	BattleIdle     BattleStatus = "idle"
	BattleMatching BattleStatus = "matching"
	BattleReady    BattleStatus = "ready"
	BattleInBattle BattleStatus = "inBattle"
	BattleEnded    BattleStatus = "ended"
)

type Option struct {
	Id      string `json:"id"`
	Label   string `json:"label"`
	Content string `json:"content"`
}

// Question is server-supplied and immutable on the client.
// CorrectAnswer is only populated by verdict responses, never before
// the answer is submitted.
type Question struct {
	Id            string   `json:"id"`
	Content       string   `json:"content"`
	Options       []Option `json:"options"`
	Difficulty    int      `json:"difficulty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
}

type Answer struct {
	QuestionId string        `json:"questionId"`
	OptionId   string        `json:"optionId"`
	IsCorrect  bool          `json:"isCorrect"`
	Elapsed    time.Duration `json:"elapsed"`
}

type Opponent struct {
	Id       string  `json:"id"`
	Nickname string  `json:"nickname"`
	Avatar   string  `json:"avatar"`
	Elo      float64 `json:"elo"`
	Tier     string  `json:"tier"`
}

type OpponentProgress struct {
	QuestionIndex int `json:"questionIndex"`
	CorrectCount  int `json:"correctCount"`
}

// BattleState is the client-held mirror of one battle. At most one is
// active per session; it is reset when the battle ends.
type BattleState struct {
	BattleId             string
	Status               BattleStatus
	Questions            []Question
	CurrentQuestionIndex int
	Answers              []Answer
	MyScore              int
	Opponent             Opponent
	OpponentProgress     OpponentProgress
}
