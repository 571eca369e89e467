package dtos

import "github.com/studyarena/pkarena/internal/domains/entities"

type BattleInfoResponse struct {
	BattleId    string              `json:"battleId"`
	Mode        string              `json:"mode"`
	DurationSec int                 `json:"durationSec"`
	Questions   []entities.Question `json:"questions"`
	Opponent    entities.Opponent   `json:"opponent"`
}

type AnswerSubmission struct {
	QuestionId string `json:"questionId"`
	OptionId   string `json:"optionId"`
	ElapsedMs  int64  `json:"elapsedMs"`
}

type AnswerVerdict struct {
	IsCorrect     bool   `json:"isCorrect"`
	CorrectOption string `json:"correctOption,omitempty"`
	MyScore       int    `json:"myScore"`
	OpponentScore int    `json:"opponentScore"`
}

// QuestionStartReport is the advisory anti-cheat signal recording when
// a question was first shown.
type QuestionStartReport struct {
	QuestionId string `json:"questionId"`
	ShownAt    int64  `json:"shownAt"`
}

type BattleEndRequest struct {
	Reason string `json:"reason"`
}

type BattleResult struct {
	BattleId      string  `json:"battleId"`
	WinnerId      string  `json:"winnerId"`
	MyScore       int     `json:"myScore"`
	OpponentScore int     `json:"opponentScore"`
	EloChange     int     `json:"eloChange"`
	NewElo        float64 `json:"newElo"`
	NewTier       string  `json:"newTier"`
}
