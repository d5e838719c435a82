package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func commentsFixture() map[string]any {
	return map[string]any{
		"comments": []any{
			map[string]any{
				"id":     "1",
				"body":   "first",
				"author": map[string]any{"name": "jdoe", "displayName": "John Doe"},
			},
			map[string]any{
				"id":           "2",
				"body":         "second",
				"author":       map[string]any{"key": "jsmith"},
				"updateAuthor": map[string]any{"name": "jdoe"},
			},
			map[string]any{
				"id":     "3",
				"body":   "third",
				"author": map[string]any{"displayName": "Ghost"},
			},
		},
	}
}

func TestGetCommentsLimitAndMapping(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/auth/1/session":
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc"})
			w.WriteHeader(http.StatusOK)
		case "/rest/api/2/issue/TEST-123/comment":
			_ = json.NewEncoder(w).Encode(commentsFixture())
		default:
			t.Errorf("Unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, handler, nil)

	comments, err := client.GetComments(context.Background(), "TEST-123", 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("Expected 2 comments after limit, got %d", len(comments))
	}

	if comments[0].Author.AccountID != "jdoe" {
		t.Errorf("Expected author accountId mapped from name, got %q", comments[0].Author.AccountID)
	}
	if comments[1].Author.AccountID != "jsmith" {
		t.Errorf("Expected author accountId mapped from key, got %q", comments[1].Author.AccountID)
	}
	if comments[1].UpdateAuthor.AccountID != "jdoe" {
		t.Errorf("Expected updateAuthor mapped, got %q", comments[1].UpdateAuthor.AccountID)
	}
}

func TestGetCommentsToleratesMissingIdentity(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/auth/1/session" {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc"})
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(commentsFixture())
	})

	client := newTestClient(t, handler, nil)

	comments, err := client.GetComments(context.Background(), "TEST-123", 0)
	if err != nil {
		t.Fatalf("Mapping of an absent identity field must not error: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("Expected all 3 comments, got %d", len(comments))
	}
	// No identity field at all: nothing is substituted.
	if comments[2].Author.AccountID != "" {
		t.Errorf("Expected empty accountId for author without identity, got %q", comments[2].Author.AccountID)
	}
	if comments[2].Author.DisplayName != "Ghost" {
		t.Errorf("Expected displayName preserved, got %q", comments[2].Author.DisplayName)
	}
}

func TestAddComment(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/auth/1/session":
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc"})
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/2/issue/TEST-123/comment":
			var payload map[string]string
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("Failed to decode payload: %v", err)
			}
			if payload["body"] != "looks good" {
				t.Errorf("Unexpected comment body: %q", payload["body"])
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "7",
				"body":   "looks good",
				"author": map[string]any{"name": "admin"},
			})
		default:
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, handler, nil)

	comment, err := client.AddComment(context.Background(), "TEST-123", "looks good")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if comment.ID != "7" {
		t.Errorf("Expected comment id '7', got %s", comment.ID)
	}
	if comment.Author.AccountID != "admin" {
		t.Errorf("Expected author accountId 'admin', got %q", comment.Author.AccountID)
	}
}

func TestEditComment(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/auth/1/session":
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc"})
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/rest/api/2/issue/TEST-123/comment/7":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "7",
				"body":   "updated",
				"author": map[string]any{"name": "admin"},
			})
		default:
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, handler, nil)

	comment, err := client.EditComment(context.Background(), "TEST-123", "7", "updated")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if comment.Body != "updated" {
		t.Errorf("Expected body 'updated', got %q", comment.Body)
	}
}
