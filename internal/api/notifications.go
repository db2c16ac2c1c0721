package api

import (
	"context"
	"fmt"
	"net/url"
)

// NotificationService wraps the /notifications endpoints and push token
// registration.
type NotificationService struct {
	c *Client
}

func NewNotificationService(c *Client) *NotificationService {
	return &NotificationService{c: c}
}

type NotificationQuery struct {
	Page  int
	Limit int
	// Read filters by read state when non-nil.
	Read *bool
	Type string
}

func (s *NotificationService) Notifications(ctx context.Context, q NotificationQuery) (*NotificationPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	path := fmt.Sprintf("/notifications?limit=%d&page=%d", q.Limit, q.Page)
	if q.Read != nil {
		path += fmt.Sprintf("&read=%t", *q.Read)
	}
	if q.Type != "" {
		path += "&type=" + url.QueryEscape(q.Type)
	}
	var out NotificationPage
	if err := s.c.Get(ctx, path, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := s.c.Get(ctx, "/notifications/unread-count", true, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID string) error {
	return s.c.Patch(ctx, "/notifications/"+url.PathEscape(notificationID)+"/read", nil, true, nil)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context) error {
	return s.c.Patch(ctx, "/notifications/read-all", nil, true, nil)
}

func (s *NotificationService) Delete(ctx context.Context, notificationID string) error {
	return s.c.Delete(ctx, "/notifications/"+url.PathEscape(notificationID), nil, true, nil)
}

// DeleteRead removes every already-read notification and returns how many.
func (s *NotificationService) DeleteRead(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := s.c.Delete(ctx, "/notifications/read", nil, true, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

type PushTokenParams struct {
	Token      string `json:"token"`
	Platform   string `json:"platform"`
	DeviceID   string `json:"deviceId,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
}

func (s *NotificationService) RegisterPushToken(ctx context.Context, p PushTokenParams) error {
	return s.c.Post(ctx, "/notifications/push-token", p, true, nil)
}

// UnregisterPushToken removes a token. The route lives under /users, with
// the token in the request body.
func (s *NotificationService) UnregisterPushToken(ctx context.Context, token string) error {
	return s.c.Delete(ctx, "/users/push-token", map[string]string{"token": token}, true, nil)
}

type PushToken struct {
	Token      string `json:"token"`
	Platform   string `json:"platform"`
	DeviceID   string `json:"deviceId,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
}

func (s *NotificationService) PushTokens(ctx context.Context) ([]PushToken, error) {
	var out []PushToken
	if err := s.c.Get(ctx, "/users/push-tokens", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}
