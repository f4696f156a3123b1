package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrDigestNotFound = errors.New("digest not found")
	ErrCacheMiss      = errors.New("cache miss")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTemporary      = errors.New("temporary failure")
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
