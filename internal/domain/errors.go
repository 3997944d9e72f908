package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrStaleState    = errors.New("state already advanced")
	ErrDiscarded     = errors.New("record discarded")
	ErrLockHeld      = errors.New("lock already held")
	ErrTransient     = errors.New("transient failure")
)
