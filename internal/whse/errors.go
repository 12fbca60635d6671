package whse

import "errors"

var (
	// ErrSessionNotFound is returned when no session record exists for a session ID
	ErrSessionNotFound = errors.New("whse session not found")

	// ErrWarehouseNotFound is returned when a warehouse has no bin configuration
	ErrWarehouseNotFound = errors.New("warehouse not found")

	// ErrBackendRequest wraps failures to deliver an action to the execution backend
	ErrBackendRequest = errors.New("backend request failed")
)
