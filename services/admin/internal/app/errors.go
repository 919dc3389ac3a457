package app

import "errors"

var (
	// ErrBadCredentials indicates a failed operator login. The same error
	// covers unknown usernames and wrong passwords.
	ErrBadCredentials = errors.New("invalid username or password")
	// ErrContentNotFound indicates the catalog item does not exist.
	ErrContentNotFound = errors.New("content not found")
)
