package app

import "errors"

var (
	// ErrContentNotFound indicates the requested catalog item does not exist.
	ErrContentNotFound = errors.New("content not found")
	// ErrPremiumOnly indicates premium content requested without an active subscription.
	ErrPremiumOnly = errors.New("premium content requires an active subscription")
	// ErrNoMedia indicates the catalog item has no media object attached.
	ErrNoMedia = errors.New("content has no media")
)
