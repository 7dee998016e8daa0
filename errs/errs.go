// Package errs holds the error taxonomy shared by every client in the module.
// Callers match categories with errors.Is against the sentinels and pull
// details out with errors.As on the typed errors.
package errs

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrStateConflict   = errors.New("state conflict")
	ErrTransport       = errors.New("transport error")
	ErrRPC             = errors.New("rpc error")
	ErrExecutionFailed = errors.New("execution failed")
	ErrEncoding        = errors.New("encoding error")
	ErrInvalidVariant  = errors.New("invalid variant")
	ErrMissingField    = errors.New("missing field")
	ErrSigning         = errors.New("signing error")
	ErrContractCall    = errors.New("contract call error")

	// ErrAlreadyApplied and ErrNotApplied are state conflicts on the
	// issuer and listing registries.
	ErrAlreadyApplied = fmt.Errorf("%w: already applied", ErrStateConflict)
	ErrNotApplied     = fmt.Errorf("%w: not applied", ErrStateConflict)
)

// ValidationError reports malformed or out of range caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid is shorthand for a ValidationError.
func Invalid(field string, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StateConflictError reports an unmet on-chain precondition.
type StateConflictError struct {
	Address common.Address
	Reason  string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("state conflict for %s: %s", e.Address.Hex(), e.Reason)
}

func (e *StateConflictError) Is(target error) bool {
	return target == ErrStateConflict
}

// Conflict is shorthand for a StateConflictError.
func Conflict(address common.Address, reason string) error {
	return &StateConflictError{Address: address, Reason: reason}
}

// ExecutionFailedError reports a mined transaction whose receipt status is
// not successful.
type ExecutionFailedError struct {
	TxHash common.Hash
	Status uint64
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed with status %d", e.TxHash.Hex(), e.Status)
}

func (e *ExecutionFailedError) Is(target error) bool {
	return target == ErrExecutionFailed
}

// MissingFieldError reports a field the resolved encoding layout requires but
// the record does not carry.
type MissingFieldError struct {
	Layout string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q for layout %s", e.Field, e.Layout)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField || target == ErrEncoding
}

// ContractCall wraps a failed contract read or write with the method name.
func ContractCall(method string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrContractCall, method, err)
}
