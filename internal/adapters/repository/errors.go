package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrEmptyDSN          = errors.New("database dsn is required")
	ErrClosed            = errors.New("store is closed")
)
