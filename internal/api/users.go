package api

import (
	"context"
	"io"
	"net/url"
)

// UserService wraps the /users profile endpoints.
type UserService struct {
	c *Client
}

func NewUserService(c *Client) *UserService {
	return &UserService{c: c}
}

func (s *UserService) Me(ctx context.Context) (*User, error) {
	var out User
	if err := s.c.Get(ctx, "/users/me", true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UserService) ByID(ctx context.Context, userID string) (*User, error) {
	var out User
	if err := s.c.Get(ctx, "/users/"+url.PathEscape(userID), true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type UpdateProfileParams struct {
	DisplayName string `json:"displayName,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

func (s *UserService) UpdateProfile(ctx context.Context, p UpdateProfileParams) (*User, error) {
	var out User
	if err := s.c.Put(ctx, "/users/profile", p, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadAvatar replaces the profile picture. content is the raw image.
func (s *UserService) UploadAvatar(ctx context.Context, filename string, content io.Reader) (*User, error) {
	var out User
	if err := s.c.Upload(ctx, "/users/avatar", "avatar", filename, content, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UserService) DeleteAvatar(ctx context.Context) error {
	return s.c.Delete(ctx, "/users/avatar", nil, true, nil)
}

func (s *UserService) UploadCover(ctx context.Context, filename string, content io.Reader) (*User, error) {
	var out User
	if err := s.c.Upload(ctx, "/users/cover", "cover", filename, content, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UserService) DeleteCover(ctx context.Context) error {
	return s.c.Delete(ctx, "/users/cover", nil, true, nil)
}

// Search matches users by exact username or fuzzy display name.
func (s *UserService) Search(ctx context.Context, query string) ([]User, error) {
	var out []User
	path := "/users/search?q=" + url.QueryEscape(query)
	if err := s.c.Get(ctx, path, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}
