package domain

import "github.com/pkg/errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrProcessingFailure = errors.New("notification processing failed")
	ErrMalformedEvent    = errors.Wrap(ErrProcessingFailure, "malformed event")
)
