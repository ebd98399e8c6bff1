package host

import "errors"

// Errors returned by the host. They carry no meaning outside this package;
// world adapters translate them.
var (
	ErrUnknownEngine = errors.New("unknown engine")
	ErrWorldExists   = errors.New("world already exists")
	ErrModelExists   = errors.New("model already exists")
	ErrNoSuchModel   = errors.New("no such model")
	ErrBadGeometry   = errors.New("bad geometry")
	ErrBadState      = errors.New("bad state")
)
