package workload

import (
	"fmt"
	"net/http"

	"github.com/JulianoCristian/iotedge/internal/policy"
)

// ErrorKind classifies a failed certificate request
type ErrorKind int

const (
	KindBadParam ErrorKind = iota + 1
	KindBadBody
	KindEmptyArgument
	KindInvalidTimestamp
	KindOutOfRange
	KindStoreError
	KindIoError
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadParam:
		return "Bad parameter"
	case KindBadBody:
		return "Bad body"
	case KindEmptyArgument:
		return "Argument is empty or only has whitespace"
	case KindInvalidTimestamp:
		return "Invalid ISO 8601 date"
	case KindOutOfRange:
		return "Argument out of range"
	case KindStoreError:
		return "Certificate store operation failed"
	case KindIoError:
		return "An IO error occurred"
	default:
		return "Unknown error"
	}
}

// Error is the single terminal failure of a certificate request
type Error struct {
	Kind   ErrorKind
	Detail string
	Range  *policy.RangeError
	Err    error
}

func newError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func outOfRange(rangeErr *policy.RangeError) *Error {
	return &Error{Kind: KindOutOfRange, Range: rangeErr}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Kind == KindOutOfRange && e.Range != nil {
		msg = fmt.Sprintf("Argument %d out of range [%d, %d)", e.Range.Value, e.Range.Low, e.Range.High)
	}
	if e.Detail != "" {
		msg += " - [" + e.Detail + "]"
	}
	if e.Err != nil {
		msg += "\n\tcaused by: " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code the error is reported with
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadParam, KindBadBody:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
