package admin

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a queried object does not exist.
var ErrNotFound = errors.New("not found")

// UserError is one validation failure reported inside a mutation payload.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserErrors is returned when a mutation succeeds at the transport level but
// the platform rejects its input.
type UserErrors struct {
	Operation string
	Errors    []UserError
}

func (e *UserErrors) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		if len(ue.Field) > 0 {
			parts = append(parts, strings.Join(ue.Field, ".")+": "+ue.Message)
			continue
		}
		parts = append(parts, ue.Message)
	}
	return fmt.Sprintf("%s: %s", e.Operation, strings.Join(parts, "; "))
}

// GraphQLError carries top-level errors from a GraphQL response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// StatusError indicates a non-200 answer from the Admin API endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("admin api returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("admin api returned HTTP %d: %s", e.StatusCode, e.Body)
}

func userErrors(op string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	return &UserErrors{Operation: op, Errors: errs}
}
