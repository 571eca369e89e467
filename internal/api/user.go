package api

import (
	"context"

	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
)

func (c *Client) Profile(ctx context.Context) (entities.User, error) {
	data, err := c.Get(ctx, "/user/profile", nil)
	if err != nil {
		return entities.User{}, err
	}
	var user entities.User
	err = decodePayload(data, &user)
	return user, err
}

func (c *Client) UpdateProfile(ctx context.Context, update dtos.UpdateProfileRequest) (entities.User, error) {
	data, err := c.Put(ctx, "/user/profile", update)
	if err != nil {
		return entities.User{}, err
	}
	var user entities.User
	err = decodePayload(data, &user)
	return user, err
}

// UserStats bypasses the cache: the dashboard expects post-battle
// numbers to be authoritative, not five minutes old.
func (c *Client) UserStats(ctx context.Context) (entities.UserStats, error) {
	data, err := c.Get(ctx, "/user/stats", nil, WithoutCache())
	if err != nil {
		return entities.UserStats{}, err
	}
	var stats entities.UserStats
	err = decodePayload(data, &stats)
	return stats, err
}
