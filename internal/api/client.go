package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tranvh/chatline/internal/bus"
	"github.com/tranvh/chatline/internal/config"
	"github.com/tranvh/chatline/internal/store"
)

// ConnectivitySink receives reachability signals derived from call outcomes.
// Any response proves the server is up; a transport failure proves nothing
// beyond this one call, so the monitor owns the offline decision.
type ConnectivitySink interface {
	MarkReachable()
	MarkUnreachable()
}

// KindSessionExpired is published once when the refresh path is exhausted
// and the stored credentials have been wiped.
const KindSessionExpired = bus.NamespaceSession + "expired"

// KindTokenRotated is published after every successful refresh with the new
// access token as payload. The realtime transport re-authenticates on it;
// without the event the socket would keep dialing with the boot-time token.
const KindTokenRotated = bus.NamespaceSession + "token_rotated"

// Client is the authenticated REST client. All endpoint services share one
// Client, so token refresh is coordinated here: concurrent 401s collapse
// into a single refresh call, and each request retries at most once.
type Client struct {
	baseURL string
	httpc   *http.Client
	timeout time.Duration
	store   *store.DB
	conn    ConnectivitySink
	bus     *bus.Bus
	log     *zap.Logger

	refresh singleflight.Group
}

// NewClient builds a Client from the session config. The http.Client carries
// no timeout of its own, each call gets a per-attempt deadline instead so a
// refresh plus retry is not charged against a single budget.
func NewClient(cfg *config.Config, db *store.DB, conn ConnectivitySink, b *bus.Bus, log *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpc:   &http.Client{},
		timeout: cfg.RequestTimeout.Duration,
		store:   db,
		conn:    conn,
		bus:     b,
		log:     log.Named("api"),
	}
}

// Do performs one API call. body is JSON-marshalled when non-nil, out is
// filled from the envelope's data field when non-nil. Calls with requireAuth
// that find no stored token fail with MissingToken before any network I/O.
func (c *Client) Do(ctx context.Context, method, path string, body any, requireAuth bool, out any) error {
	return c.do(ctx, method, path, body, requireAuth, nil, out)
}

// DoWithHeaders is Do with extra request headers, used by the few endpoints
// that address a specific device session.
func (c *Client) DoWithHeaders(ctx context.Context, method, path string, body any, requireAuth bool, headers map[string]string, out any) error {
	return c.do(ctx, method, path, body, requireAuth, headers, out)
}

func (c *Client) Get(ctx context.Context, path string, requireAuth bool, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, requireAuth, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body any, requireAuth bool, out any) error {
	return c.do(ctx, http.MethodPost, path, body, requireAuth, nil, out)
}

func (c *Client) Put(ctx context.Context, path string, body any, requireAuth bool, out any) error {
	return c.do(ctx, http.MethodPut, path, body, requireAuth, nil, out)
}

func (c *Client) Patch(ctx context.Context, path string, body any, requireAuth bool, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, requireAuth, nil, out)
}

func (c *Client) Delete(ctx context.Context, path string, body any, requireAuth bool, out any) error {
	return c.do(ctx, http.MethodDelete, path, body, requireAuth, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, requireAuth bool, headers map[string]string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	token := ""
	if requireAuth {
		creds, err := c.store.Credentials()
		if err != nil {
			return fmt.Errorf("loading credentials: %w", err)
		}
		if creds == nil || creds.AccessToken == "" {
			return &AuthError{Reason: MissingToken}
		}
		token = creds.AccessToken
	}

	status, raw, err := c.send(ctx, method, path, payload, "application/json", token, headers)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && requireAuth {
		newToken, rerr := c.refreshAccessToken(ctx)
		if rerr != nil {
			return rerr
		}
		status, raw, err = c.send(ctx, method, path, payload, "application/json", newToken, headers)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			// The fresh token was rejected too. One refresh, one retry,
			// then the session is over.
			return c.expireSession(errors.New("request unauthorized after token refresh"))
		}
	}

	return decode(status, raw, out)
}

// Upload sends a multipart form with a single file field. It follows the
// same refresh-and-retry-once path as Do; the content is buffered so the
// retry can resend it.
func (c *Client) Upload(ctx context.Context, path, field, filename string, content io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	payload := buf.Bytes()
	contentType := mw.FormDataContentType()

	creds, err := c.store.Credentials()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if creds == nil || creds.AccessToken == "" {
		return &AuthError{Reason: MissingToken}
	}

	status, raw, err := c.send(ctx, http.MethodPost, path, payload, contentType, creds.AccessToken, nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		newToken, rerr := c.refreshAccessToken(ctx)
		if rerr != nil {
			return rerr
		}
		status, raw, err = c.send(ctx, http.MethodPost, path, payload, contentType, newToken, nil)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return c.expireSession(errors.New("upload unauthorized after token refresh"))
		}
	}
	return decode(status, raw, out)
}

// send performs one HTTP attempt under a fresh per-attempt deadline and
// drains the whole body before the deadline context is released: canceling
// the request context closes the body, so a read deferred past cancel would
// race it. On a 401 the bytes are therefore in hand before the refresh
// decision, but they stay unparsed; decode only ever runs on the attempt
// that settled the call.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, contentType, token string, headers map[string]string) (int, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.conn.MarkUnreachable()
		reason := Unreachable
		if callCtx.Err() == context.DeadlineExceeded {
			reason = Timeout
		}
		c.log.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return 0, nil, &NetworkError{Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.conn.MarkUnreachable()
		return 0, nil, &NetworkError{Reason: Unreachable, Err: err}
	}

	// Any response, including an error status, proves the server is up.
	c.conn.MarkReachable()
	return resp.StatusCode, raw, nil
}

// refreshAccessToken exchanges the stored refresh token for a new pair.
// Concurrent callers share one flight; every waiter gets the same token or
// the same failure. A refresh rejected by the server terminates the session,
// a transport failure does not.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	v, err, _ := c.refresh.Do("refresh", func() (any, error) {
		creds, err := c.store.Credentials()
		if err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
		if creds == nil || creds.RefreshToken == "" {
			return nil, c.expireSession(errors.New("no refresh token stored"))
		}

		payload, err := json.Marshal(map[string]string{"refreshToken": creds.RefreshToken})
		if err != nil {
			return nil, err
		}
		status, raw, err := c.send(ctx, http.MethodPost, "/auth/refresh", payload, "application/json", "", nil)
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, c.expireSession(fmt.Errorf("refresh rejected with status %d", status))
		}

		var pair TokenPair
		if err := decode(status, raw, &pair); err != nil {
			return nil, err
		}
		if pair.Token == "" {
			return nil, c.expireSession(errors.New("refresh response carried no token"))
		}
		if err := c.store.SaveTokens(pair.Token, pair.RefreshToken); err != nil {
			return nil, fmt.Errorf("persisting refreshed tokens: %w", err)
		}
		c.log.Info("access token refreshed")
		c.bus.Publish(bus.Event{
			Kind:      KindTokenRotated,
			Timestamp: time.Now(),
			Payload:   pair.Token,
		})
		return pair.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Probe is the health check used by the connectivity monitor. It bypasses
// the normal call path so it never touches the sink or the token, the
// monitor alone decides what a failed probe means. The endpoint needs no
// auth; a 400 for the missing email parameter proves the server is up just
// as well as a 200.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/check-email", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if (resp.StatusCode >= 200 && resp.StatusCode < 300) || resp.StatusCode == http.StatusBadRequest {
		return nil
	}
	return fmt.Errorf("probe returned status %d", resp.StatusCode)
}

// expireSession wipes credentials, announces the logout and returns the
// terminal auth error. It never triggers another refresh.
func (c *Client) expireSession(cause error) error {
	if err := c.store.ClearCredentials(); err != nil {
		c.log.Error("clearing credentials", zap.Error(err))
	}
	c.log.Warn("session expired", zap.Error(cause))
	c.bus.Publish(bus.Event{
		Kind:      KindSessionExpired,
		Timestamp: time.Now(),
	})
	return &AuthError{Reason: SessionExpired}
}

func decode(status int, raw []byte, out any) error {
	var env envelope
	if len(raw) > 0 {
		// A body that is not the standard envelope is tolerated for error
		// statuses and rejected for success ones.
		if err := json.Unmarshal(raw, &env); err != nil && status >= 200 && status < 300 {
			return fmt.Errorf("malformed response body: %w", err)
		}
	}
	if status < 200 || status >= 300 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &ServerError{Status: status, Code: env.Code, Message: msg}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(raw, out)
}
