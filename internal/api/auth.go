package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tranvh/chatline/internal/store"
)

// AuthService wraps the /auth endpoints. Login is a two-step OTP exchange:
// SendLoginOTP validates the password and mails a code, VerifyLoginOTP
// trades the code for a token pair and persists the whole credential set.
type AuthService struct {
	c *Client
}

func NewAuthService(c *Client) *AuthService {
	return &AuthService{c: c}
}

// CheckEmail reports whether an account exists for the address. It needs no
// auth, which also makes it the connectivity probe endpoint.
func (s *AuthService) CheckEmail(ctx context.Context, email string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	path := "/auth/check-email?email=" + url.QueryEscape(email)
	if err := s.c.Get(ctx, path, false, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

type RegisterParams struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	DisplayName     string `json:"displayName"`
}

func (s *AuthService) Register(ctx context.Context, p RegisterParams) (*LoginResult, error) {
	var out LoginResult
	if err := s.c.Post(ctx, "/auth/register", p, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	path := "/auth/verify-email?token=" + url.QueryEscape(token)
	if err := s.c.Get(ctx, path, false, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (s *AuthService) ResendVerificationEmail(ctx context.Context, email string) error {
	return s.c.Post(ctx, "/auth/resend-verification-email", map[string]string{"email": email}, false, nil)
}

// SendLoginOTP checks the password and sends the login code by mail.
func (s *AuthService) SendLoginOTP(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return s.c.Post(ctx, "/auth/send-login-otp", body, false, nil)
}

// VerifyLoginOTP completes the login. The device identity comes from the
// credential store so re-login from the same machine reuses one session
// slot on the server. The returned credentials are persisted before the
// call reports success.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, email, otp string) (*LoginResult, error) {
	dev, err := s.c.store.Device("chatline daemon", "desktop")
	if err != nil {
		return nil, fmt.Errorf("loading device identity: %w", err)
	}
	body := map[string]string{
		"email":      email,
		"otp":        otp,
		"deviceId":   dev.ID,
		"deviceName": dev.Name,
		"deviceType": dev.Type,
	}
	var out LoginResult
	if err := s.c.Post(ctx, "/auth/verify-login-otp", body, false, &out); err != nil {
		return nil, err
	}
	userJSON, err := json.Marshal(out.User)
	if err != nil {
		return nil, err
	}
	creds := &store.Credentials{
		AccessToken:  out.Token,
		RefreshToken: out.RefreshToken,
		UserJSON:     userJSON,
	}
	if err := s.c.store.SaveCredentials(creds); err != nil {
		return nil, fmt.Errorf("persisting credentials: %w", err)
	}
	return &out, nil
}

// Refresh forces a token exchange outside the 401 path, e.g. ahead of a
// long-lived socket reconnect. Shares the same single flight as implicit
// refreshes.
func (s *AuthService) Refresh(ctx context.Context) error {
	_, err := s.c.refreshAccessToken(ctx)
	return err
}

// CurrentUser fetches the authenticated user's profile. The /auth/me route
// is deprecated server-side, the canonical one lives under /users.
func (s *AuthService) CurrentUser(ctx context.Context) (*User, error) {
	var out User
	if err := s.c.Get(ctx, "/users/me", true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the server session and wipes local credentials. Local
// state is cleared even when the server call fails, a dead session must not
// keep the client logged in.
func (s *AuthService) Logout(ctx context.Context) error {
	callErr := s.c.Post(ctx, "/auth/logout", nil, true, nil)
	if err := s.c.store.ClearCredentials(); err != nil {
		return err
	}
	return callErr
}

func (s *AuthService) Sessions(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := s.c.Get(ctx, "/auth/sessions", true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AuthService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.c.Delete(ctx, "/auth/sessions/"+url.PathEscape(sessionID), nil, true, nil)
}

// LogoutAllOtherDevices revokes every session except the one named in the
// X-Session-Id header.
func (s *AuthService) LogoutAllOtherDevices(ctx context.Context, keepSessionID string) error {
	headers := map[string]string{"X-Session-Id": keepSessionID}
	return s.c.DoWithHeaders(ctx, http.MethodDelete, "/auth/sessions", nil, true, headers, nil)
}

type UpdateUserParams struct {
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func (s *AuthService) UpdateUser(ctx context.Context, p UpdateUserParams) (*User, error) {
	var out User
	if err := s.c.Put(ctx, "/auth/update", p, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) SendResetPasswordOTP(ctx context.Context, email string) error {
	return s.c.Post(ctx, "/auth/send-reset-password-otp", map[string]string{"email": email}, false, nil)
}

func (s *AuthService) VerifyResetPasswordOTP(ctx context.Context, email, otp, newPassword string) error {
	body := map[string]string{"email": email, "otp": otp, "newPassword": newPassword}
	return s.c.Post(ctx, "/auth/verify-reset-password-otp", body, false, nil)
}

func (s *AuthService) SendChangePasswordOTP(ctx context.Context, oldPassword string) error {
	return s.c.Post(ctx, "/auth/send-change-password-otp", map[string]string{"oldPassword": oldPassword}, true, nil)
}

func (s *AuthService) VerifyChangePasswordOTP(ctx context.Context, otp, newPassword string) error {
	body := map[string]string{"otp": otp, "newPassword": newPassword}
	return s.c.Post(ctx, "/auth/verify-change-password-otp", body, true, nil)
}
