package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"

	"jira_bridge/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestClient builds a client against a test server. The returned cleanup
// runs automatically and also drains idle connections so goroutine leak
// detection stays quiet.
func newTestClient(t *testing.T, handler http.Handler, mutate func(*config.Config)) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)

	cfg := &config.Config{
		URL:        srv.URL,
		Mode:       config.ModeServer6x,
		AuthType:   config.AuthBasic,
		AuthMethod: config.MethodCookie,
		Username:   "admin",
		Password:   "secret",
		SSLVerify:  true,
	}
	if mutate != nil {
		mutate(cfg)
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	t.Cleanup(func() {
		client.httpClient.CloseIdleConnections()
		srv.Close()
	})

	return client
}

func sessionCookieCount(r *http.Request) int {
	count := 0
	for _, c := range r.Cookies() {
		if c.Name == "JSESSIONID" {
			count++
		}
	}
	return count
}

func TestCookieSessionEstablishment(t *testing.T) {
	var sessionPosts, apiCalls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/auth/1/session" && r.Method == http.MethodPost:
			sessionPosts.Add(1)

			var creds map[string]string
			if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
				t.Errorf("Failed to decode session payload: %v", err)
			}
			if creds["username"] != "admin" || creds["password"] != "secret" {
				t.Errorf("Unexpected credentials in session payload: %v", creds)
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Expected JSON session payload, got %s", r.Header.Get("Content-Type"))
			}

			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc123"})
			_ = json.NewEncoder(w).Encode(map[string]any{
				"session": map[string]string{"name": "JSESSIONID", "value": "abc123"},
			})
		case r.URL.Path == "/rest/api/2/myself":
			apiCalls.Add(1)

			if n := sessionCookieCount(r); n != 1 {
				t.Errorf("Expected session cookie attached exactly once, got %d", n)
			}
			if _, _, ok := r.BasicAuth(); ok {
				t.Errorf("Cookie auth must not send an Authorization header")
			}

			_ = json.NewEncoder(w).Encode(map[string]any{
				"name":        "admin",
				"displayName": "Admin",
			})
		default:
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, handler, nil)

	user, err := client.Myself(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if user.AccountID != "admin" {
		t.Errorf("Expected accountId mapped from name, got %q", user.AccountID)
	}

	// Second call reuses the session instead of re-authenticating.
	if _, err := client.Myself(context.Background()); err != nil {
		t.Fatalf("Unexpected error on second call: %v", err)
	}

	if got := sessionPosts.Load(); got != 1 {
		t.Errorf("Expected 1 session establishment, got %d", got)
	}
	if got := apiCalls.Load(); got != 2 {
		t.Errorf("Expected 2 API calls, got %d", got)
	}
}

func TestSessionRefreshOn401(t *testing.T) {
	var sessionPosts, apiCalls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/auth/1/session" && r.Method == http.MethodPost:
			n := sessionPosts.Add(1)
			value := "stale"
			if n > 1 {
				value = "fresh"
			}
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: value})
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/rest/api/2/myself":
			apiCalls.Add(1)
			cookie, err := r.Cookie("JSESSIONID")
			if err != nil || cookie.Value != "fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "admin"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, handler, nil)

	user, err := client.Myself(context.Background())
	if err != nil {
		t.Fatalf("Expected success after one refresh, got error: %v", err)
	}
	if user.AccountID != "admin" {
		t.Errorf("Expected accountId 'admin', got %q", user.AccountID)
	}

	if got := sessionPosts.Load(); got != 2 {
		t.Errorf("Expected exactly 2 session establishments (initial + refresh), got %d", got)
	}
	if got := apiCalls.Load(); got != 2 {
		t.Errorf("Expected exactly 2 API attempts, got %d", got)
	}
}

func TestSecondConsecutive401IsTerminal(t *testing.T) {
	var sessionPosts, apiCalls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/auth/1/session" && r.Method == http.MethodPost:
			sessionPosts.Add(1)
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "rejected"})
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/rest/api/2/myself":
			apiCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, handler, nil)

	_, err := client.Myself(context.Background())
	if err == nil {
		t.Fatalf("Expected terminal authentication error")
	}
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got: %v", err)
	}

	if got := sessionPosts.Load(); got != 2 {
		t.Errorf("Expected exactly one re-establishment after the first 401, got %d session posts", got)
	}
	if got := apiCalls.Load(); got != 2 {
		t.Errorf("Expected exactly 2 API attempts and no further retry, got %d", got)
	}
}

func TestRefreshFailurePropagates(t *testing.T) {
	var sessionPosts atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/auth/1/session" && r.Method == http.MethodPost:
			if sessionPosts.Add(1) > 1 {
				// Refresh attempt is denied outright.
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "expired"})
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/rest/api/2/myself":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, handler, nil)

	_, err := client.Myself(context.Background())
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication when refresh fails, got: %v", err)
	}
}

func TestLogout(t *testing.T) {
	var deletes atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/auth/1/session" && r.Method == http.MethodPost:
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc123"})
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/rest/auth/1/session" && r.Method == http.MethodDelete:
			deletes.Add(1)
			if n := sessionCookieCount(r); n != 1 {
				t.Errorf("Expected logout to carry the session cookie, got %d", n)
			}
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/rest/api/2/myself":
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "admin"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, handler, nil)

	if _, err := client.Myself(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("Unexpected logout error: %v", err)
	}
	if got := deletes.Load(); got != 1 {
		t.Errorf("Expected 1 session DELETE, got %d", got)
	}

	// A second logout is a no-op: the session is already gone.
	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("Unexpected error on repeated logout: %v", err)
	}
	if got := deletes.Load(); got != 1 {
		t.Errorf("Expected no further session DELETE, got %d", got)
	}
}

func TestBasicAuth(t *testing.T) {
	var apiCalls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		username, password, ok := r.BasicAuth()
		if !ok {
			t.Errorf("Expected basic auth header")
		}
		if username != "admin" || password != "secret" {
			t.Errorf("Unexpected credentials: %s/%s", username, password)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "admin"})
	})

	client := newTestClient(t, handler, func(cfg *config.Config) {
		cfg.AuthMethod = config.MethodBasic
	})

	if _, err := client.Myself(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := apiCalls.Load(); got != 1 {
		t.Errorf("Expected 1 API call, got %d", got)
	}
}

func TestBasicAuth401IsTerminalWithoutRetry(t *testing.T) {
	var apiCalls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newTestClient(t, handler, func(cfg *config.Config) {
		cfg.AuthMethod = config.MethodBasic
	})

	_, err := client.Myself(context.Background())
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got: %v", err)
	}
	if got := apiCalls.Load(); got != 1 {
		t.Errorf("Expected no retry for basic auth, got %d attempts", got)
	}
}

func TestPersonalTokenAuth(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer pat-token" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"accountId": "u1"})
	})

	client := newTestClient(t, handler, func(cfg *config.Config) {
		cfg.Mode = config.ModeCloud
		cfg.AuthType = config.AuthPAT
		cfg.AuthMethod = config.MethodBasic
		cfg.PersonalToken = "pat-token"
	})

	user, err := client.Myself(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if user.AccountID != "u1" {
		t.Errorf("Expected accountId 'u1', got %q", user.AccountID)
	}
}

func TestAPIErrorSurfacesWithoutRetry(t *testing.T) {
	var apiCalls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/auth/1/session" {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc"})
			w.WriteHeader(http.StatusOK)
			return
		}
		apiCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	client := newTestClient(t, handler, nil)

	_, err := client.Myself(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got: %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", apiErr.StatusCode)
	}
	if got := apiCalls.Load(); got != 1 {
		t.Errorf("Expected generic errors to surface without retry, got %d attempts", got)
	}
}
