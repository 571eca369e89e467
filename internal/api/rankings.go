package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
)

func (c *Client) Rankings(ctx context.Context, tier string, limit int) (dtos.RankingsResponse, error) {
	params := url.Values{}
	if tier != "" {
		params.Set("tier", tier)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	data, err := c.Get(ctx, "/pk/rankings", params)
	if err != nil {
		return dtos.RankingsResponse{}, err
	}
	var resp dtos.RankingsResponse
	err = decodePayload(data, &resp)
	return resp, err
}

func (c *Client) UserRanking(ctx context.Context, userId string) (entities.RankingEntry, error) {
	data, err := c.Get(ctx, "/pk/rankings/"+userId, nil)
	if err != nil {
		return entities.RankingEntry{}, err
	}
	var entry entities.RankingEntry
	err = decodePayload(data, &entry)
	return entry, err
}
