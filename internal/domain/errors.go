package domain

import "errors"

var (
	// ErrCatalogNotFound indicates the question catalog could not be loaded.
	ErrCatalogNotFound = errors.New("question catalog not found")
	// ErrEmptyCatalog is fatal at startup: a session cannot run without questions.
	ErrEmptyCatalog = errors.New("question catalog is empty")
)
