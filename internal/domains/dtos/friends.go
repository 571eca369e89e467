package dtos

import "github.com/studyarena/pkarena/internal/domains/entities"

type FriendRequestSubmission struct {
	ToUserId string `json:"toUserId"`
	Message  string `json:"message,omitempty"`
}

// UserSearchResult annotates a looked-up user with the relationship the
// searcher already has, so duplicate requests can be prevented up front.
type UserSearchResult struct {
	User           entities.User `json:"user"`
	IsFriend       bool          `json:"isFriend"`
	RequestPending bool          `json:"requestPending"`
}

type BattleInvite struct {
	InviteId string            `json:"inviteId"`
	FromUser entities.Opponent `json:"fromUser"`
	Mode     string            `json:"mode"`
	Message  string            `json:"message,omitempty"`
}
