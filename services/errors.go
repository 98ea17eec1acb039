package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record does not exist or is not visible to the caller
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness rule rejected a write; the caller may retry
	ErrConflict = errors.New("conflict, please try again")
	// ErrProtected is returned when a delete is blocked by referencing rows
	ErrProtected = errors.New("record is referenced and cannot be deleted")
	// ErrInvalidQuantity is returned for non-positive cart quantities
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrEmptyCart is returned when checking out a cart without items
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidTransition is returned when the order lifecycle forbids a status change
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrCycle is returned when a category would become its own ancestor
	ErrCycle = errors.New("category cannot be moved under itself or its descendant")
)

// FieldError describes one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors carries every violation found in an input, not only the first
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationErrors) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a violation
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Has reports whether a violation was recorded for field
func (e *ValidationErrors) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns nil when nothing was recorded
func (e *ValidationErrors) OrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// isUniqueViolation reports whether err comes from a unique index
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// isForeignKeyViolation reports whether err comes from a foreign key constraint
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key")
}

// notFound maps gorm.ErrRecordNotFound to ErrNotFound and wraps other errors
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
