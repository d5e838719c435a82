package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"jira_bridge/internal/config"
	"jira_bridge/internal/logger"
	"jira_bridge/internal/model"
)

// maxPageSize is the server-enforced page ceiling under server_6x mode.
const maxPageSize = 50

// Client talks to the Jira REST API. It applies the configured auth scheme to
// every request and, under legacy cookie auth, re-establishes the session at
// most once per 401 before surfacing a terminal authentication error.
type Client struct {
	baseURL    string
	cfg        *config.Config
	httpClient *http.Client
	session    *session // non-nil only for cookie auth
}

// NewClient creates a Jira client from the resolved configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("jira base URL is required")
	}

	rt, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{
		Transport: rt,
		Timeout:   30 * time.Second,
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		cfg:        cfg,
		httpClient: httpClient,
	}
	if cfg.CookieAuth() {
		c.session = newSession(c.baseURL, cfg.Username, cfg.Password, httpClient)
	}

	logger.GetLogger().Debug("jira client initialized",
		zap.String("url", c.baseURL),
		zap.String("mode", string(cfg.Mode)),
		zap.String("auth_type", string(cfg.AuthType)),
		zap.Bool("cookie_auth", c.session != nil))

	return c, nil
}

// Logout invalidates the cookie session, if any. Called on orderly shutdown.
func (c *Client) Logout(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	return c.session.logout(ctx)
}

// do issues one API request and decodes the JSON response into out (out may
// be nil for responses without a body). Under cookie auth a 401 triggers
// exactly one session re-establishment followed by one retry.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	refreshed := false
	for {
		req, err := c.newRequest(ctx, method, path, query, payload)
		if err != nil {
			return err
		}

		var gen int
		if c.session != nil {
			cookie, g, err := c.session.current(ctx)
			if err != nil {
				return err
			}
			req.AddCookie(cookie)
			gen = g
		} else {
			c.applyAuth(req)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && c.session != nil && !refreshed {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if _, _, err := c.session.refresh(ctx, gen); err != nil {
				return err
			}
			refreshed = true
			continue
		}

		return c.decode(resp, out)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, payload []byte) (*http.Request, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) applyAuth(req *http.Request) {
	switch c.cfg.AuthType {
	case config.AuthPAT:
		req.Header.Set("Authorization", "Bearer "+c.cfg.PersonalToken)
	default:
		req.SetBasicAuth(c.cfg.Username, c.cfg.BasicPassword())
	}
}

func (c *Client) decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrAuthentication,
			(&APIError{StatusCode: resp.StatusCode, Body: string(data)}).Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse jira response: %w", err)
	}
	return nil
}

// Myself returns the authenticated user, normalized to the modern identity
// schema. Used to validate authentication at startup.
func (c *Client) Myself(ctx context.Context) (*model.User, error) {
	raw := map[string]any{}
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/myself", nil, nil, &raw); err != nil {
		return nil, err
	}
	if c.cfg.IsServer6x() {
		raw = normalizeUserResponse(raw)
	}

	var user model.User
	if err := decodeMap(raw, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// clampPageSize enforces the legacy per-page ceiling.
func (c *Client) clampPageSize(maxResults int) int {
	if maxResults <= 0 {
		return maxPageSize
	}
	if c.cfg.IsServer6x() && maxResults > maxPageSize {
		logger.GetLogger().Debug("clamping maxResults for server_6x",
			zap.Int("requested", maxResults), zap.Int("clamped", maxPageSize))
		return maxPageSize
	}
	return maxResults
}

// decodeMap converts a normalized payload into a typed struct by a JSON
// round-trip, letting encoding/json handle the type conversions.
func decodeMap(raw map[string]any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal normalized data: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal to target struct: %w", err)
	}
	return nil
}
