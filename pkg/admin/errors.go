package admin

import "errors"

var (
	// ErrNoCredential is returned by operations that need an admin
	// credential when none is held.
	ErrNoCredential = errors.New("no admin credential; run `portal admin bootstrap`")

	// ErrNameRequired is returned when creating a key with a blank name.
	ErrNameRequired = errors.New("key name is required")

	// ErrInvalidCredential is returned once the gateway rejected the admin
	// credential and automatic recovery was not possible.
	ErrInvalidCredential = errors.New("admin credential is invalid; run `portal admin bootstrap` or `portal admin rotate`")
)
