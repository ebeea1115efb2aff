package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Error codes for the channel protocol. They are carried in the optional
// error frame, so values are part of the wire contract.
const (
	CodeInvalidChannel  = 1001
	CodeAlreadyJoined   = 1002
	CodeNotJoined       = 1003
	CodeMalformedFrame  = 1004
	CodeDeliveryFailure = 1005
	CodeSessionClosed   = 1006

	// HTTP only.
	CodeOriginDenied = 2001
)

var (
	ErrInvalidChannel  = NewCodeError(CodeInvalidChannel, "InvalidChannel")
	ErrAlreadyJoined   = NewCodeError(CodeAlreadyJoined, "AlreadyJoined")
	ErrNotJoined       = NewCodeError(CodeNotJoined, "NotJoined")
	ErrMalformedFrame  = NewCodeError(CodeMalformedFrame, "MalformedFrame")
	ErrDeliveryFailure = NewCodeError(CodeDeliveryFailure, "DeliveryFailure")
	ErrSessionClosed   = NewCodeError(CodeSessionClosed, "SessionClosed")
	ErrOriginDenied    = NewCodeError(CodeOriginDenied, "OriginDenied")
)

type CodeErrorI interface {
	ECode() int
	EMsg() string
	DDetail() string
	error
}

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e CodeError) ECode() int      { return e.Code }
func (e CodeError) EMsg() string    { return e.Msg }
func (e CodeError) DDetail() string { return e.Detail }

func (e CodeError) WithDetail(detail string) CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Wrap returns the error with a stack attached.
func (e CodeError) Wrap() error {
	return pkgerrors.WithStack(e)
}

// WrapMsg attaches a detail built from msg and key/value pairs, plus a stack.
func (e CodeError) WrapMsg(msg string, kv ...any) error {
	ret := e
	if msg != "" || len(kv) > 0 {
		ret = e.WithDetail(toString(msg, kv))
	}
	return pkgerrors.WithStack(ret)
}

// Is reports whether err carries a CodeError with the same code.
func (e CodeError) Is(err error) bool {
	var codeErr CodeError
	if !errors.As(err, &codeErr) {
		return false
	}
	return codeErr.Code == e.Code
}

func (e CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// AsCode extracts the CodeError carried by err.
func AsCode(err error) (CodeError, bool) {
	var codeErr CodeError
	if errors.As(err, &codeErr) {
		return codeErr, true
	}
	return CodeError{}, false
}

// Wrap attaches a stack to a plain error.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

// WrapMsg annotates err with msg and key/value pairs.
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, toString(msg, kv))
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteString("=")
		if i+1 < len(kv) {
			b.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			b.WriteString("MISSING")
		}
	}
	return b.String()
}
