package models

import "errors"

// Vrste grešaka koje servisi vraćaju; handler sloj ih mapira na HTTP statuse.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAccessDenied = errors.New("access denied")
	ErrValidation   = errors.New("validation failed")
	ErrInternal     = errors.New("internal error")
)
