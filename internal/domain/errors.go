package domain

import "errors" // Sentinel errors

var (
	// ErrUserNotFound is returned when no user matches an id or email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already exists")
)
