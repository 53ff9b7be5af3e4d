// Package service provides business logic for the application.
package service

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// Service errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidImage       = errors.New("upload a valid image")
)

// Field error messages.
const (
	msgRequired     = "this field is required"
	msgBlank        = "this field may not be blank"
	msgInvalidEmail = "enter a valid email address"
)

// ValidationError maps payload fields to human readable problems.
type ValidationError struct {
	Fields map[string]string
}

// Error lists the failing fields in a stable order.
func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// validator accumulates field errors.
type validator struct {
	fields map[string]string
}

func (v *validator) add(field, msg string) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = msg
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// fieldError builds a single-field ValidationError.
func fieldError(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
