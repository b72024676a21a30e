package engine

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why an instruction was rejected. The numeric values
// are stable and appear in the transaction log.
type ErrorCode int

const (
	InvalidPrice ErrorCode = iota
	CashbackMax
	InvalidPayment
	InvalidStateAccount
	// AccountAlreadyHasEntry is reserved for duplicate-registration checks.
	AccountAlreadyHasEntry
	AlreadyInitialized
	NoSuchItem
	InvalidDrawSize
	MissingRequiredSignature
	TransferError
	ItemAlreadySold
	RegistryFull
	InvalidAccount
	NotEnoughAccountKeys
	InvalidInstructionData
)

var codeNames = [...]string{
	InvalidPrice:             "InvalidPrice",
	CashbackMax:              "CashbackMax",
	InvalidPayment:           "InvalidPayment",
	InvalidStateAccount:      "InvalidStateAccount",
	AccountAlreadyHasEntry:   "AccountAlreadyHasEntry",
	AlreadyInitialized:       "AlreadyInitialized",
	NoSuchItem:               "NoSuchItem",
	InvalidDrawSize:          "InvalidDrawSize",
	MissingRequiredSignature: "MissingRequiredSignature",
	TransferError:            "TransferError",
	ItemAlreadySold:          "ItemAlreadySold",
	RegistryFull:             "RegistryFull",
	InvalidAccount:           "InvalidAccount",
	NotEnoughAccountKeys:     "NotEnoughAccountKeys",
	InvalidInstructionData:   "InvalidInstructionData",
}

func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// ParseErrorCode maps a code name back to its value.
func ParseErrorCode(name string) (ErrorCode, bool) {
	for i, n := range codeNames {
		if n == name {
			return ErrorCode(i), true
		}
	}
	return 0, false
}

// ProcessError is returned when an instruction is rejected.
type ProcessError struct {
	// Code identifies the rejection category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Instruction is the snake_case instruction name, when known.
	Instruction string

	// Err is the underlying cause, e.g. a failed transfer.
	Err error
}

func (e *ProcessError) Error() string {
	msg := e.Code.String()
	if e.Instruction != "" {
		msg = e.Instruction + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func reject(code ErrorCode, format string, args ...any) *ProcessError {
	return &ProcessError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func rejectWrap(code ErrorCode, err error, format string, args ...any) *ProcessError {
	return &ProcessError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the rejection code from err. Uses errors.As to handle
// wrapped errors.
func CodeOf(err error) (ErrorCode, bool) {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// IsCode reports whether err is a ProcessError with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
