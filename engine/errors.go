package engine

import "errors"

// Errors returned by the engine and interop services.
var (
	ErrOutOfGas             = errors.New("insufficient GAS")
	ErrContractNotFound     = errors.New("contract not found")
	ErrMethodNotFound       = errors.New("method not found")
	ErrCallNotAllowed       = errors.New("call is not allowed")
	ErrContractBlocked      = errors.New("contract is blocked")
	ErrMultipleReturnValues = errors.New("multiple return values of a dynamic call")
	ErrUnknownService       = errors.New("unknown interop service")
	ErrCapabilityDenied     = errors.New("missing call flags")
	ErrInvalidToken         = errors.New("invalid method token")
	ErrDuplicateService     = errors.New("duplicate interop service")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidCallFlags     = errors.New("invalid call flags")
	ErrReturnTypeMismatch   = errors.New("return type mismatch")
	ErrNativeCallFailed     = errors.New("native contract call failed")
	ErrTooManyNotifications = errors.New("too many notifications")
	ErrNoSnapshot           = errors.New("no storage snapshot")
	ErrNoContext            = errors.New("no execution context")
)
