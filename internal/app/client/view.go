package client

import (
	"time"

	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
)

// Notifier surfaces transient feedback and blocking confirmations.
type Notifier interface {
	Toast(message string)
	Confirm(prompt string) bool
}

// BattleView receives render callbacks from the battle orchestrator.
type BattleView interface {
	RenderQuestion(index, total int, question entities.Question)
	ShowVerdict(correct bool, correctOption string)
	UpdateClock(remaining time.Duration)
	UpdateOpponentProgress(progress entities.OpponentProgress)
	BattleEnded(result dtos.BattleResult, reason string)
}
