// pkg/core/errors.go
package core

import "errors"

// Error taxonomy. Worlds convert host errors into one of these at their
// boundary; callers test with errors.Is.
var (
	ErrResourceNotFound   = errors.New("resource not found")
	ErrLoadFailed         = errors.New("load failed")
	ErrEngineUnavailable  = errors.New("engine unavailable")
	ErrStateMismatch      = errors.New("state mismatch")
	ErrSetupInconsistency = errors.New("setup inconsistency")
	ErrAgreementFailure   = errors.New("agreement failure")
)
