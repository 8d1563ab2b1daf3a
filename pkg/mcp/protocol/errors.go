// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies a protocol failure independently of its wire code.
type Kind string

// Failure kinds reported in a Response envelope.
const (
	KindParseError         Kind = "ParseError"
	KindInvalidRequest     Kind = "InvalidRequest"
	KindUnknownMethod      Kind = "UnknownMethod"
	KindInvalidArguments   Kind = "InvalidArguments"
	KindInternalError      Kind = "InternalError"
	KindUnknownTool        Kind = "UnknownTool"
	KindNotInitialized     Kind = "NotInitialized"
	KindUnknownSession     Kind = "UnknownSession"
	KindUnsupportedVersion Kind = "UnsupportedVersion"
	KindHandlerError       Kind = "HandlerError"
	KindDuplicateTool      Kind = "DuplicateTool"
)

// Standard JSON-RPC error codes
const (
	ParseError     = -32700 // Invalid JSON
	InvalidRequest = -32600 // Invalid JSON-RPC
	MethodNotFound = -32601 // Method doesn't exist
	InvalidParams  = -32602 // Invalid parameters
	InternalError  = -32603 // Internal error
)

// Server-defined error codes (-32000 to -32099).
const (
	UnknownToolCode        = -32001
	NotInitializedCode     = -32002
	UnknownSessionCode     = -32003
	UnsupportedVersionCode = -32004
	HandlerErrorCode       = -32005
	DuplicateToolCode      = -32006
)

var kindCodes = map[Kind]int{
	KindParseError:         ParseError,
	KindInvalidRequest:     InvalidRequest,
	KindUnknownMethod:      MethodNotFound,
	KindInvalidArguments:   InvalidParams,
	KindInternalError:      InternalError,
	KindUnknownTool:        UnknownToolCode,
	KindNotInitialized:     NotInitializedCode,
	KindUnknownSession:     UnknownSessionCode,
	KindUnsupportedVersion: UnsupportedVersionCode,
	KindHandlerError:       HandlerErrorCode,
	KindDuplicateTool:      DuplicateToolCode,
}

// Code returns the wire code for the kind.
func (k Kind) Code() int {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return InternalError
}

// KindForCode maps a wire code back to its kind. Unknown codes map to
// KindInternalError.
func KindForCode(code int) Kind {
	for k, c := range kindCodes {
		if c == code {
			return k
		}
	}
	return KindInternalError
}

// Error represents a JSON-RPC 2.0 error
type Error struct {
	Code    int             `json:"code"`           // Error code
	Message string          `json:"message"`        // Human-readable message
	Data    json.RawMessage `json:"data,omitempty"` // Additional error info
}

// ErrorData is the structured payload carried in Error.Data.
type ErrorData struct {
	Kind      Kind     `json:"kind"`
	Param     string   `json:"param,omitempty"`
	Supported []string `json:"supported,omitempty"`
}

// NewError creates a standard JSON-RPC error
func NewError(code int, message string, data interface{}) *Error {
	e := &Error{
		Code:    code,
		Message: message,
	}
	if data != nil {
		dataJSON, err := json.Marshal(data)
		if err == nil {
			e.Data = dataJSON
		}
	}
	return e
}

// NewKindError creates an error of the given kind.
func NewKindError(kind Kind, message string) *Error {
	return NewError(kind.Code(), message, ErrorData{Kind: kind})
}

// NewKindErrorf creates an error of the given kind with a formatted message.
func NewKindErrorf(kind Kind, format string, args ...interface{}) *Error {
	return NewKindError(kind, fmt.Sprintf(format, args...))
}

// InvalidArgumentsError reports the offending parameter name.
func InvalidArgumentsError(param, message string) *Error {
	return NewError(InvalidParams, message, ErrorData{Kind: KindInvalidArguments, Param: param})
}

// UnsupportedVersionError lists the versions the server accepts.
func UnsupportedVersionError(requested string, supported []string) *Error {
	return NewError(UnsupportedVersionCode,
		fmt.Sprintf("unsupported protocol version %q", requested),
		ErrorData{Kind: KindUnsupportedVersion, Supported: supported})
}

// Implement error interface for Error
func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// Details decodes Data. Errors produced by other servers may carry no data,
// in which case the kind is derived from the code.
func (e *Error) Details() ErrorData {
	var d ErrorData
	if len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &d)
	}
	if d.Kind == "" {
		d.Kind = KindForCode(e.Code)
	}
	return d
}

// Kind returns the failure kind.
func (e *Error) Kind() Kind {
	return e.Details().Kind
}

// Is matches another *Error of the same kind, so a kind template can be used
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind() == t.Kind()
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err carries no protocol failure.
func KindOf(err error) Kind {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind()
	}
	return ""
}

// AsError converts any error into a wire error. Protocol errors keep their
// code; anything else becomes an InternalError.
func AsError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return NewKindError(KindInternalError, err.Error())
}
