package jira

import (
	"errors"
	"fmt"
)

// ErrAuthentication marks terminal authentication failures: credentials were
// rejected and, under cookie auth, the single session re-establishment did
// not help.
var ErrAuthentication = errors.New("jira authentication failed")

// APIError is a non-2xx response from the Jira API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira API returned status %d: %s", e.StatusCode, e.Body)
}
