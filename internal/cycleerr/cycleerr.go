// Package cycleerr holds the error kinds shared by the cycle stages.
package cycleerr

import "errors"

// #region sentinels
var (
	// ErrInvalidInput marks a malformed buffer or a missing required input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState marks a trait state that is not fully valid.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidConfig marks a weight, rate or cap table that cannot be used.
	ErrInvalidConfig = errors.New("invalid config")
)

// #endregion sentinels
