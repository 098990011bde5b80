package jsonrpc

import (
	"encoding/json"
	"fmt"
)

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (err *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", err.Code, err.Message)
}

func NewError(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// DecodeParams unmarshals params into target. Absent params leave target untouched.
func DecodeParams(params json.RawMessage, target interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}

	if err := json.Unmarshal(params, target); err != nil {
		return NewError(CodeInvalidParams, "invalid params: %v", err)
	}

	return nil
}

func asError(err error) *Error {
	if rpcErr, ok := err.(*Error); ok {
		return rpcErr
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}
