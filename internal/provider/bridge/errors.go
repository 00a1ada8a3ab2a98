package bridge

import (
	"fmt"

	"github.com/pkg/errors"
)

// EIP-1193 provider errors and JSON-RPC 2.0 errors.
const (
	CodeUserRejected       = 4001
	CodeUnauthorized       = 4100
	CodeUnsupportedMethod  = 4200
	CodeDisconnected       = 4900
	CodeChainDisconnected  = 4901
	CodeInvalidRequest     = -32600
	CodeMethodNotFound     = -32601
	CodeInvalidParams      = -32602
	CodeInternal           = -32603
	messageUnavailable     = "bridge unavailable"
	messageMalformedPrefix = "malformed bridge response"
)

// ErrBridgeUnavailable is returned when no channel to the host exists.
var ErrBridgeUnavailable = &RPCError{Code: CodeInternal, Message: messageUnavailable}

// RPCError is the only error shape that leaves the transport. It satisfies
// go-ethereum's rpc.Error and rpc.DataError interfaces.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewRPCError builds an RPCError.
func NewRPCError(code int, message string, data any) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// ErrorCode returns the JSON-RPC error code.
func (e *RPCError) ErrorCode() int { return e.Code }

// ErrorData returns the optional data member.
func (e *RPCError) ErrorData() any { return e.Data }

// Is matches another RPCError with the same code and message, so that
// errors.Is(err, ErrBridgeUnavailable) holds for any copy of it. Data is ignored.
func (e *RPCError) Is(target error) bool {
	t, ok := target.(*RPCError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// AsRPCError converts any error into an RPCError. Errors that are not RPCErrors
// become internal errors.
func AsRPCError(err error) *RPCError {
	if err == nil {
		return nil
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	return &RPCError{Code: CodeInternal, Message: err.Error()}
}

// IsUserRejected reports whether the host rejected the request on the user's behalf.
func IsUserRejected(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == CodeUserRejected
}

func newMalformedResponseError(err error) *RPCError {
	return &RPCError{
		Code:    CodeInternal,
		Message: messageMalformedPrefix,
		Data:    err.Error(),
	}
}

func newCallFailedError(err error) *RPCError {
	return &RPCError{
		Code:    CodeInternal,
		Message: errors.Wrap(err, "bridge call failed").Error(),
	}
}
