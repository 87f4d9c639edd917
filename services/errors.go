package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"manuscript-workflow-api/models"
)

// Workflow outcome errors. Callers classify with errors.Is.
var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrScoreGateFailed    = errors.New("score gate failed")
	ErrPendingReviews     = errors.New("pending reviews")
	ErrNotificationFailed = errors.New("notification failed")
	ErrManuscriptNotFound = errors.New("manuscript not found")
	ErrStaffNotFound      = errors.New("staff member not found")
	ErrConflict           = errors.New("manuscript was modified concurrently")
	ErrDuplicateFileCode  = errors.New("file code already in use")
	ErrForbidden          = errors.New("action not permitted for this actor")
)

// ValidationError carries field-level problems with a request.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a problem for field. The first message per field wins.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// OrNil returns e as an error only when it holds at least one field.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func fieldError(field, message string) error {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

func invalidTransition(event string, m *models.Manuscript) error {
	if m.Stage.IsTerminal() {
		return fmt.Errorf("%w: cannot %s a manuscript that is %s", ErrInvalidTransition, event, m.Stage)
	}
	return fmt.Errorf("%w: cannot %s from %s (%s)", ErrInvalidTransition, event, m.Stage, m.ProgressStatus)
}
