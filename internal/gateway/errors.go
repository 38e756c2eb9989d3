package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrDeployment   = errors.New("deployment error")
	ErrOperation    = errors.New("operation error")
	ErrTransport    = errors.New("transport error")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error 网关调用失败的统一载体
// Kind 为上面的哨兵错误之一，errors.Is(err, ErrNotFound) 等判断基于 Kind
type Error struct {
	Kind   error
	Op     string
	Detail string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func NewValidation(op, detail string) *Error {
	return &Error{Kind: ErrValidation, Op: op, Detail: detail}
}

func NewNotFound(op, detail string) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Detail: detail}
}

func NewDeployment(op, detail string) *Error {
	return &Error{Kind: ErrDeployment, Op: op, Detail: detail}
}

func NewOperation(op, detail string) *Error {
	return &Error{Kind: ErrOperation, Op: op, Detail: detail}
}

func NewTransport(op string, cause error) *Error {
	return &Error{Kind: ErrTransport, Op: op, Err: cause}
}

// Detail returns the human-readable text to show for err: the server or
// validation detail when one was supplied, otherwise the raw error text.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		if ge.Detail != "" {
			return ge.Detail
		}
		if ge.Err != nil {
			return ge.Err.Error()
		}
		return ge.Kind.Error()
	}
	return err.Error()
}

// Kind returns the taxonomy sentinel of err, or nil when err is not a gateway error.
func Kind(err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return nil
}
