package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateNotice = errors.New("notice already exists for dancer, level, and dance")
)
