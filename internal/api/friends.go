package api

import (
	"context"
	"net/url"
)

// RequestFilter selects which friend requests to list.
type RequestFilter string

const (
	RequestsReceived RequestFilter = "received"
	RequestsSent     RequestFilter = "sent"
	RequestsAll      RequestFilter = "all"
)

// FriendService wraps the /friends endpoints.
type FriendService struct {
	c *Client
}

func NewFriendService(c *Client) *FriendService {
	return &FriendService{c: c}
}

func (s *FriendService) SendRequest(ctx context.Context, receiverID string) (*FriendRequest, error) {
	var out FriendRequest
	body := map[string]string{"receiverId": receiverID}
	if err := s.c.Post(ctx, "/friends/requests", body, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *FriendService) Requests(ctx context.Context, filter RequestFilter) ([]FriendRequest, error) {
	if filter == "" {
		filter = RequestsAll
	}
	var out []FriendRequest
	path := "/friends/requests?type=" + url.QueryEscape(string(filter))
	if err := s.c.Get(ctx, path, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FriendService) AcceptRequest(ctx context.Context, requestID string) error {
	return s.c.Post(ctx, "/friends/requests/"+url.PathEscape(requestID)+"/accept", nil, true, nil)
}

func (s *FriendService) RejectRequest(ctx context.Context, requestID string) error {
	return s.c.Post(ctx, "/friends/requests/"+url.PathEscape(requestID)+"/reject", nil, true, nil)
}

func (s *FriendService) CancelRequest(ctx context.Context, requestID string) error {
	return s.c.Delete(ctx, "/friends/requests/"+url.PathEscape(requestID), nil, true, nil)
}

func (s *FriendService) Friends(ctx context.Context) ([]Friend, error) {
	var out []Friend
	if err := s.c.Get(ctx, "/friends", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserFriends lists another user's friends.
func (s *FriendService) UserFriends(ctx context.Context, userID string) ([]Friend, error) {
	var out []Friend
	if err := s.c.Get(ctx, "/users/"+url.PathEscape(userID)+"/friends", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FriendService) RemoveFriend(ctx context.Context, friendID string) error {
	return s.c.Delete(ctx, "/friends/"+url.PathEscape(friendID), nil, true, nil)
}
