package service

import (
	"errors"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrPermissionDenied = errors.New("permission denied")
	ErrPostNotFound     = errors.New("post not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryInUse    = errors.New("category is still used by posts")
	// ErrPostConflict 表示文章在读取之后被其他请求修改
	ErrPostConflict = errors.New("post was modified concurrently")
	ErrStorage      = errors.New("storage operation failed")
)

// ValidationError lists the fields that failed validation. It matches
// ErrInvalidInput with errors.Is.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "invalid input"
	}
	if len(e.Fields) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func missingFields(fields ...string) error {
	return &ValidationError{Message: "missing required fields", Fields: fields}
}
