package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLeadNotFound     = errors.New("lead not found")
	ErrSourceNotFound   = errors.New("source not found")
	ErrDuplicateLead    = errors.New("duplicate lead")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
	ErrAllSourcesFailed = errors.New("all source endpoints failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
