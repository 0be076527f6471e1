package repository

import (
	"errors"
)

var (
	ErrRecordNotFound         = errors.New("sync record not found")
	ErrDatabaseUnavailable    = errors.New("database is unavailable")
	ErrDatabaseGeneric        = errors.New("database error occurred while processing request")
	ErrInvalidQueryParameters = errors.New("invalid query parameters provided for sync record operation")
)
