package lifecycle

import (
	"errors"
	"fmt"
)

// Machine-readable error codes for lifecycle failures.
const (
	CodeNotFound           = "ASSET_NOT_FOUND"
	CodeAssetUnavailable   = "ASSET_UNAVAILABLE"
	CodeNoOpenCheckout     = "NO_OPEN_CHECKOUT"
	CodeAssetNotCheckedOut = "ASSET_NOT_CHECKED_OUT"
	CodeLoanerUnavailable  = "LOANER_UNAVAILABLE"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeTicketNotFound     = "TICKET_NOT_FOUND"
)

// Error is a structured error for rejected lifecycle operations. Lifecycle
// operations are all-or-nothing: when an Error is returned, no state was
// mutated.
type Error struct {
	Code    string `json:"code"`
	Tag     string `json:"tag,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// IsCode reports whether err is a lifecycle *Error with the given code.
func IsCode(err error, code string) bool {
	var le *Error
	return errors.As(err, &le) && le.Code == code
}

func errNotFound(tag string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Tag:     tag,
		Message: fmt.Sprintf("asset %q not found", tag),
	}
}

func errUnavailable(tag string, status string) *Error {
	return &Error{
		Code:    CodeAssetUnavailable,
		Tag:     tag,
		Message: fmt.Sprintf("asset %q is not available for checkout (status: %s)", tag, status),
	}
}

func errNoOpenCheckout(tag string) *Error {
	return &Error{
		Code:    CodeNoOpenCheckout,
		Tag:     tag,
		Message: fmt.Sprintf("asset %q is not currently checked out", tag),
	}
}

func errNotCheckedOut(tag string) *Error {
	return &Error{
		Code:    CodeAssetNotCheckedOut,
		Tag:     tag,
		Message: fmt.Sprintf("asset %q has no open checkout to swap", tag),
	}
}

func errTicketNotFound(id string) *Error {
	return &Error{
		Code:    CodeTicketNotFound,
		Message: fmt.Sprintf("repair ticket %q not found", id),
	}
}

func errLoanerUnavailable(tag string, status string) *Error {
	return &Error{
		Code:    CodeLoanerUnavailable,
		Tag:     tag,
		Message: fmt.Sprintf("loaner %q is not available (status: %s)", tag, status),
	}
}
