package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"jira_bridge/internal/logger"
	"jira_bridge/internal/model"
)

const sessionPath = "/rest/auth/1/session"

// session holds the cookie credential for legacy session auth. One session is
// shared per configured credential; establishment and refresh are serialized
// behind the mutex so concurrent 401s queue behind a single re-establishment
// instead of racing their own.
type session struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu     sync.Mutex
	cookie *http.Cookie
	gen    int // bumped on every successful establishment
}

func newSession(baseURL, username, password string, httpClient *http.Client) *session {
	return &session{
		baseURL:    baseURL,
		username:   username,
		password:   password,
		httpClient: httpClient,
	}
}

// current returns the session cookie, establishing it on first use. The
// returned generation identifies which session the caller observed; it is
// what refresh uses to detect that another request already re-established.
func (s *session) current(ctx context.Context) (*http.Cookie, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cookie == nil {
		if err := s.establish(ctx); err != nil {
			return nil, 0, err
		}
	}
	return s.cookie, s.gen, nil
}

// refresh re-establishes the session after a 401. If the caller's generation
// is stale another request already refreshed, so the current cookie is
// returned as-is; each failed session is re-established at most once.
func (s *session) refresh(ctx context.Context, observed int) (*http.Cookie, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != observed && s.cookie != nil {
		return s.cookie, s.gen, nil
	}

	logger.GetLogger().Info("refreshing cookie session after 401")
	if err := s.establish(ctx); err != nil {
		return nil, 0, err
	}
	return s.cookie, s.gen, nil
}

// establish POSTs the credentials to /rest/auth/1/session and retains the
// JSESSIONID. Caller must hold s.mu.
func (s *session) establish(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"username": s.username,
		"password": s.password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+sessionPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error establishing cookie session: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: failed to establish cookie session: %s",
			ErrAuthentication, (&APIError{StatusCode: resp.StatusCode, Body: string(body)}).Error())
	}

	for _, c := range resp.Cookies() {
		if c.Name == "JSESSIONID" {
			s.cookie = c
			s.gen++
			logger.GetLogger().Info("cookie session established")
			return nil
		}
	}

	// Some deployments omit Set-Cookie and only return the session in the
	// body.
	var info model.SessionInfo
	if err := json.Unmarshal(body, &info); err == nil && info.Session.Value != "" {
		name := info.Session.Name
		if name == "" {
			name = "JSESSIONID"
		}
		s.cookie = &http.Cookie{Name: name, Value: info.Session.Value}
		s.gen++
		logger.GetLogger().Info("cookie session established from response body")
		return nil
	}

	return fmt.Errorf("%w: session response did not include JSESSIONID", ErrAuthentication)
}

// logout invalidates the session on orderly shutdown via DELETE
// /rest/auth/1/session. Safe to call when no session was ever established.
func (s *session) logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cookie == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+sessionPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create logout request: %w", err)
	}
	req.AddCookie(s.cookie)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error during cookie session logout: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	s.cookie = nil
	logger.GetLogger().Info("cookie session logged out", zap.Int("status", resp.StatusCode))
	return nil
}
