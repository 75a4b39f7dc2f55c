package unit

import "errors"

// Error taxonomy surfaced to control-surface and transmit-path callers
// (spec §7).
var (
	ErrNetworkDown        = errors.New("ppp: network down")
	ErrFamilyNotSupported = errors.New("ppp: address family not supported")
	ErrOutOfBuffers       = errors.New("ppp: out of buffers")
	ErrInvalid            = errors.New("ppp: invalid argument")
	ErrNotPermitted       = errors.New("ppp: operation not permitted")
	ErrUnknownControl     = errors.New("ppp: unknown control operation")
	ErrNoUnitAvailable    = errors.New("ppp: no unit available")
)
