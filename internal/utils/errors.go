package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion pairs an error with the next step the user can take.
// The CLI prints both.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion attaches a suggestion to err.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{Err: err, Suggestion: suggestion}
}

func suggest(err error, format string, args ...any) error {
	return WrapWithSuggestion(err, fmt.Sprintf(format, args...))
}

func ErrTaskNotFound(searchTerm string) error {
	return suggest(fmt.Errorf("task not found: %s", searchTerm),
		"Check the task ID or use 'done tasks <list>' to see the tasks of a list")
}

func ErrListNotFound(listName string) error {
	return suggest(fmt.Errorf("list not found: %s", listName),
		"Use 'done lists' to see the available lists")
}

func ErrNoListsAvailable() error {
	return suggest(errors.New("no lists available"),
		"Create a list in the TUI or with your provider's own client")
}

// ErrProviderNotConfigured is for a provider that is unknown or disabled.
func ErrProviderNotConfigured(name string) error {
	return suggest(fmt.Errorf("provider not configured: %s", name),
		"Enable %s under 'providers' in your config file or run 'done providers'", name)
}

// ErrNotLoggedIn is for a remote provider without a stored token.
func ErrNotLoggedIn(name string) error {
	return suggest(fmt.Errorf("not logged in to %s", name), "Run 'done login %s'", name)
}

func ErrAuthenticationFailed(name string) error {
	return suggest(fmt.Errorf("authentication failed for %s", name),
		"Run 'done logout %s' and 'done login %s' to renew the token", name, name)
}

func ErrInvalidDate(value string) error {
	return suggest(fmt.Errorf("invalid date: %s", value),
		"Use YYYY-MM-DD, today, tomorrow, a weekday such as fri, or an offset such as 3d or 2w")
}

// offlineHints maps fragments of a transport error to a suggestion.
// First match wins.
var offlineHints = []struct {
	fragments  []string
	suggestion string
}{
	{[]string{"no such host", "dns"}, "Check your DNS settings and internet connection"},
	{[]string{"connection refused"}, "Check if the server is running and accessible"},
	{[]string{"throttled"}, "The provider is rate limiting requests. Wait a minute and try again"},
	{[]string{"timeout", "deadline exceeded"}, "The server may be slow or unreachable. Try again later"},
}

// ErrProviderOffline is for a provider that could not be reached. The
// suggestion depends on the reason.
func ErrProviderOffline(name, reason string) error {
	suggestion := "Check your internet connection and try again"
	lower := strings.ToLower(reason)
hints:
	for _, h := range offlineHints {
		for _, f := range h.fragments {
			if strings.Contains(lower, f) {
				suggestion = h.suggestion
				break hints
			}
		}
	}
	return suggest(fmt.Errorf("provider %s is offline: %s", name, reason), "%s", suggestion)
}
