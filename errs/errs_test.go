package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/maxatome/go-testdeep/td"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", Invalid("tradeFee", "must be from 0 to %d", 10), ErrValidation},
		{"conflict", Conflict(addr, "already a relayer"), ErrStateConflict},
		{"execution", &ExecutionFailedError{TxHash: common.Hash{1}}, ErrExecutionFailed},
		{"missing field", &MissingFieldError{Layout: "SpotLimit", Field: "price"}, ErrMissingField},
		{"missing field is encoding", &MissingFieldError{Layout: "SpotLimit", Field: "price"}, ErrEncoding},
		{"already applied", ErrAlreadyApplied, ErrStateConflict},
		{"not applied", ErrNotApplied, ErrStateConflict},
		{"contract call", ContractCall("tokens", errors.New("boom")), ErrContractCall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("failed to do thing: %w", tt.err)
			td.CmpTrue(t, errors.Is(wrapped, tt.sentinel))
		})
	}
}

func TestConflictMessageCarriesAddress(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	err := Conflict(addr, "already a relayer")

	td.Cmp(t, err.Error(), td.Contains("already a relayer"))
	td.Cmp(t, err.Error(), td.Contains(addr.Hex()))

	var conflict *StateConflictError
	td.CmpTrue(t, errors.As(err, &conflict))
	td.Cmp(t, conflict.Address, addr)
}
