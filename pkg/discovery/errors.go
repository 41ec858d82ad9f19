package discovery

import "errors"

// Package-level sentinel errors for discovery operations.
var (
	// ErrInvalidServiceType is returned for invalid or unknown service types.
	ErrInvalidServiceType = errors.New("discovery: invalid service type")

	// ErrServiceNotFound is returned when a requested service is not found.
	ErrServiceNotFound = errors.New("discovery: service not found")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("discovery: operation timed out")

	// ErrNoAddresses is returned when a resolved service has no IP address.
	ErrNoAddresses = errors.New("discovery: service has no addresses")
)
