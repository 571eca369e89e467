package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
)

// terminalView renders battle callbacks and notifications as plain
// lines on stdout. It doubles as the confirmation prompt, sharing the
// REPL's reader.
type terminalView struct {
	reader *bufio.Reader
}

func newTerminalView(reader *bufio.Reader) *terminalView {
	return &terminalView{reader: reader}
}

func (v *terminalView) Toast(message string) {
	fmt.Printf("[!] %s\n", message)
}

func (v *terminalView) Confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, err := v.reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func (v *terminalView) RenderQuestion(index, total int, question entities.Question) {
	fmt.Printf("\nQuestion %d/%d: %s\n", index+1, total, question.Content)
	for _, option := range question.Options {
		fmt.Printf("  %s) %s\n", option.Label, option.Content)
	}
	fmt.Println("Pick with: select <a|b|c|d>, then: submit")
}

func (v *terminalView) ShowVerdict(correct bool, correctOption string) {
	if correct {
		fmt.Println("Correct!")
		return
	}
	fmt.Printf("Wrong. The correct option was %s.\n", strings.ToUpper(correctOption))
}

func (v *terminalView) UpdateClock(remaining time.Duration) {
	// Only print at sparse checkpoints to keep the prompt usable
	seconds := int(remaining.Seconds())
	if seconds > 0 && (seconds%30 == 0 || seconds <= 10) {
		fmt.Printf("[clock] %s left\n", remaining)
	}
}

func (v *terminalView) UpdateOpponentProgress(progress entities.OpponentProgress) {
	fmt.Printf("[opponent] question %d, %d correct\n",
		progress.QuestionIndex, progress.CorrectCount)
}

func (v *terminalView) BattleEnded(result dtos.BattleResult, reason string) {
	fmt.Printf("\nBattle over (%s): you %d - %d opponent\n",
		reason, result.MyScore, result.OpponentScore)
	if result.NewElo > 0 {
		fmt.Printf("New rating: %.0f (%s)\n", result.NewElo, result.NewTier)
	}
}
