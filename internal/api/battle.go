package api

import (
	"context"

	"github.com/studyarena/pkarena/internal/domains/dtos"
)

// BattleInfo is never cached: a stale snapshot of an in-progress battle
// is worse than no snapshot.
func (c *Client) BattleInfo(ctx context.Context, battleId string) (dtos.BattleInfoResponse, error) {
	data, err := c.Get(ctx, "/pk/battles/"+battleId, nil, WithoutCache())
	if err != nil {
		return dtos.BattleInfoResponse{}, err
	}
	var info dtos.BattleInfoResponse
	err = decodePayload(data, &info)
	return info, err
}

func (c *Client) SubmitAnswer(ctx context.Context, battleId string, submission dtos.AnswerSubmission) (dtos.AnswerVerdict, error) {
	data, err := c.Post(ctx, "/pk/battles/"+battleId+"/answer", submission)
	if err != nil {
		return dtos.AnswerVerdict{}, err
	}
	var verdict dtos.AnswerVerdict
	err = decodePayload(data, &verdict)
	return verdict, err
}

// ReportQuestionStart sends the advisory anti-cheat timestamp. Callers
// treat failures as non-fatal.
func (c *Client) ReportQuestionStart(ctx context.Context, battleId string, report dtos.QuestionStartReport) error {
	_, err := c.Post(ctx, "/pk/battles/"+battleId+"/start-report", report)
	return err
}

func (c *Client) EndBattle(ctx context.Context, battleId, reason string) (dtos.BattleResult, error) {
	data, err := c.Post(ctx, "/pk/battles/"+battleId+"/end", dtos.BattleEndRequest{Reason: reason})
	if err != nil {
		return dtos.BattleResult{}, err
	}
	var result dtos.BattleResult
	err = decodePayload(data, &result)
	return result, err
}

func (c *Client) Forfeit(ctx context.Context, battleId string) (dtos.BattleResult, error) {
	data, err := c.Post(ctx, "/pk/battles/"+battleId+"/forfeit", nil)
	if err != nil {
		return dtos.BattleResult{}, err
	}
	var result dtos.BattleResult
	err = decodePayload(data, &result)
	return result, err
}
