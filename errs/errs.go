// Package errs defines the stable, numeric error codes surfaced by the
// storage engine (spec §7) and a small wrapping helper so call sites can
// attach context without losing the underlying sentinel.
package errs

import (
	"fmt"

	"github.com/devlights/gomy/errs"
)

// Code is a stable numeric error kind. Values are never renumbered once
// shipped, matching the source's compatibility requirement.
type Code int

const (
	// OK is not itself an error; some internal helpers return (Code, bool)
	// and use OK as the zero value.
	OK Code = iota
	InvalidFileVersion
	IndexVersionMismatch
	UnsupportedDataType
	EmptyColumn
	InputOverLength
	UnsupportedConvert
	ExceedLimit
	ExceedKeyLength
	RepeatedRecord
	FileOpenFailed
	PageCRCMismatch
	StructureError
)

var names = map[Code]string{
	InvalidFileVersion:   "TB_INVALID_FILE_VERSION",
	IndexVersionMismatch: "TB_ERROR_INDEX_VERSION",
	UnsupportedDataType:  "TB_INDEX_UNSUPPORT_DATA_TYPE",
	EmptyColumn:          "TB_INDEX_EMPTY_COLUMN",
	InputOverLength:      "DT_INPUT_OVER_LENGTH",
	UnsupportedConvert:   "DT_UNSUPPORT_CONVERT",
	ExceedLimit:          "CM_EXCEED_LIMIT",
	ExceedKeyLength:      "CORE_EXCEED_KEY_LENGTH",
	RepeatedRecord:       "CORE_REPEATED_RECORD",
	FileOpenFailed:       "FILE_OPEN_FAILED",
	PageCRCMismatch:      "CORE_PAGE_CRC_MISMATCH",
	StructureError:       "CORE_STRUCT_ERROR",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// Error wraps a Code with the operation that surfaced it and an optional
// underlying cause, matching spec §7's "propagation policy": the failing
// leaf sets an error which is surfaced in the return value of the
// enclosing public operation.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for op/code with no further cause.
func New(op string, code Code) *Error {
	return &Error{Code: code, Op: op}
}

// Wrap attaches op/code context to cause using gomy's error-context
// helper so the original error remains reachable via errors.Unwrap.
func Wrap(op string, code Code, cause error) *Error {
	if cause == nil {
		return New(op, code)
	}
	return &Error{Code: code, Op: op, Err: errs.Wrap(cause, fmt.Sprintf("%s: %s", op, code))}
}

// CodeOf extracts the Code from err, if any, returning (code, true).
func CodeOf(err error) (Code, bool) {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return OK, false
	}
	return e.Code, true
}
