package api

import (
	"context"

	"github.com/studyarena/pkarena/internal/domains/dtos"
)

func (c *Client) JoinQueue(ctx context.Context, mode string) error {
	_, err := c.Post(ctx, "/pk/matching/join", dtos.JoinQueueRequest{Mode: mode})
	return err
}

func (c *Client) LeaveQueue(ctx context.Context) error {
	_, err := c.Post(ctx, "/pk/matching/leave", nil)
	return err
}
