package database

import "errors"

// Domain-specific errors for database operations.
var (
	// ErrNoPath is returned when Open is called without a database path.
	ErrNoPath = errors.New("database: path is required")

	// ErrUnavailable is returned when the database does not answer.
	ErrUnavailable = errors.New("database: unavailable")

	// ErrMigrationMissing is returned when an applied migration has no file.
	ErrMigrationMissing = errors.New("database: migration not found")
)
