package api

import (
	"context"
	"net/url"

	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/domains/entities"
)

func (c *Client) Friends(ctx context.Context) ([]entities.Friend, error) {
	data, err := c.Get(ctx, "/pk/friends", nil, WithoutCache())
	if err != nil {
		return nil, err
	}
	var friends []entities.Friend
	err = decodePayload(data, &friends)
	return friends, err
}

func (c *Client) FriendRequests(ctx context.Context) ([]entities.FriendRequest, error) {
	data, err := c.Get(ctx, "/pk/friends/requests", nil, WithoutCache())
	if err != nil {
		return nil, err
	}
	var requests []entities.FriendRequest
	err = decodePayload(data, &requests)
	return requests, err
}

func (c *Client) SendFriendRequest(ctx context.Context, toUserId, message string) error {
	_, err := c.Post(ctx, "/pk/friends/requests", dtos.FriendRequestSubmission{
		ToUserId: toUserId,
		Message:  message,
	})
	return err
}

func (c *Client) AcceptFriendRequest(ctx context.Context, requestId string) error {
	_, err := c.Post(ctx, "/pk/friends/requests/"+requestId+"/accept", nil)
	return err
}

func (c *Client) RejectFriendRequest(ctx context.Context, requestId string) error {
	_, err := c.Post(ctx, "/pk/friends/requests/"+requestId+"/reject", nil)
	return err
}

func (c *Client) RemoveFriend(ctx context.Context, friendId string) error {
	_, err := c.Delete(ctx, "/pk/friends/"+friendId)
	return err
}

// SearchUsers looks up users by nickname prefix. The server excludes
// the searcher and annotates existing relationships.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]dtos.UserSearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	data, err := c.Get(ctx, "/pk/friends/search", params, WithoutCache())
	if err != nil {
		return nil, err
	}
	var results []dtos.UserSearchResult
	err = decodePayload(data, &results)
	return results, err
}

func (c *Client) InviteFriend(ctx context.Context, friendId, mode string) error {
	_, err := c.Post(ctx, "/pk/friends/"+friendId+"/invite", dtos.JoinQueueRequest{Mode: mode})
	return err
}

func (c *Client) AcceptInvite(ctx context.Context, inviteId string) (dtos.MatchFound, error) {
	data, err := c.Post(ctx, "/pk/invites/"+inviteId+"/accept", nil)
	if err != nil {
		return dtos.MatchFound{}, err
	}
	var found dtos.MatchFound
	err = decodePayload(data, &found)
	return found, err
}

func (c *Client) RejectInvite(ctx context.Context, inviteId string) error {
	_, err := c.Post(ctx, "/pk/invites/"+inviteId+"/reject", nil)
	return err
}
