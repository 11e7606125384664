package app

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidQuery     = errors.New("query is empty")
	ErrQueryTooLong     = errors.New("query exceeds maximum length")
	ErrDocumentNotFound = errors.New("document not found")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrFileTooLarge     = errors.New("file exceeds upload size limit")
)
