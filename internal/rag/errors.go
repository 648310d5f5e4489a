package rag

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidPDF       = errors.New("invalid pdf")
	ErrEmptyDocument    = errors.New("document has no extractable text")
	ErrDocumentNotFound = errors.New("pdf not found")
	ErrSessionNotFound  = errors.New("session not found")
)
