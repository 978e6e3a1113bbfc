package community

import "errors"

var (
	// ErrInvalidInput marks callers' bad input (blank ids, oversized text).
	ErrInvalidInput = errors.New("community: invalid input")

	// ErrNotFound marks a missing community or message target.
	ErrNotFound = errors.New("community: not found")

	// ErrEmptyComment marks a comment whose text is blank after trimming.
	ErrEmptyComment = errors.New("community: empty comment")
)
