package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrRequestNotFound  = errors.New("request not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// ErrEmptyExtraction marks a syntactically valid provider response in
	// which none of the baseline fields were found.
	ErrEmptyExtraction = errors.New("empty extraction")

	// ErrFatalConfig marks misconfiguration (e.g. missing provider
	// credentials) that must fail fast instead of cycling attempts.
	ErrFatalConfig = errors.New("fatal configuration")
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
