package api

import (
	"context"
	"fmt"

	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
)

// Login exchanges credentials for a session and persists it.
func (c *Client) Login(ctx context.Context, username, password string) (entities.Session, error) {
	data, err := c.Post(ctx, "/auth/login", dtos.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return entities.Session{}, err
	}
	var resp dtos.LoginResponse
	if err := decodePayload(data, &resp); err != nil {
		return entities.Session{}, err
	}
	session := entities.Session{
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	if err := c.session.SetSession(session); err != nil {
		return entities.Session{}, fmt.Errorf("failed to persist session: %w", err)
	}
	return session, nil
}
