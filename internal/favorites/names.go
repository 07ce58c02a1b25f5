package favorites

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinNameLength = 1
	MaxNameLength = 40
)

type ValidationCode string

const (
	CodeEmptyName   ValidationCode = "EMPTY_NAME"
	CodeNameTooLong ValidationCode = "NAME_TOO_LONG"
)

var (
	ErrEmptyName   = errors.New("name cannot be empty")
	ErrNameTooLong = errors.New("name is too long")
	ErrMissingID   = errors.New("favorite ID is required")
)

// ValidationError explains why a favorite name was refused
type ValidationError struct {
	Code   ValidationCode
	Length int
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid favorite name (%s, %d characters): %v", e.Code, e.Length, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Message is the text shown to the user for this failure
func (e *ValidationError) Message() string {
	if e.Code == CodeEmptyName {
		return "Name cannot be empty."
	}
	return fmt.Sprintf("Name must be %d characters or fewer.", MaxNameLength)
}

// NormalizeName is the single normalization rule applied to every stored name
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// ValidateName normalizes name and checks its length in characters
func ValidateName(name string) error {
	n := utf8.RuneCountInString(NormalizeName(name))
	switch {
	case n < MinNameLength:
		return &ValidationError{Code: CodeEmptyName, Length: n, Err: ErrEmptyName}
	case n > MaxNameLength:
		return &ValidationError{Code: CodeNameTooLong, Length: n, Err: ErrNameTooLong}
	}
	return nil
}

func IsValidName(name string) bool {
	return ValidateName(name) == nil
}

// truncateName cuts a normalized name to the maximum length
func truncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	return strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
}
