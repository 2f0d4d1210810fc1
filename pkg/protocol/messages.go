package protocol

import (
	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/codec"
	"github.com/matzehuels/stackbuild/pkg/errors"
)

// Methods.
const (
	MethodInitialize  = "initialize"
	MethodGetMetadata = "get_metadata"
	MethodBuild       = "build"
	MethodCancel      = "cancel"
)

// Request is the envelope of one call on the stream and socket transports.
// Params are decoded by the method handler.
type Request struct {
	ID     uint64           `cbor:"id"`
	Method string           `cbor:"method"`
	Params codec.RawMessage `cbor:"params,omitempty"`
}

// Response is the envelope of one reply. Exactly one of Result and Error is
// set, as indicated by OK.
type Response struct {
	ID     uint64     `json:"id" cbor:"id"`
	OK     bool       `json:"ok" cbor:"ok"`
	Result any        `json:"result,omitempty" cbor:"result,omitempty"`
	Error  *WireError `json:"error,omitempty" cbor:"error,omitempty"`
}

// WireError is the structured error object sent to the frontend.
type WireError struct {
	Code    errors.Code `json:"code" cbor:"code"`
	Message string      `json:"message" cbor:"message"`
	errors.Detail
}

// NewWireError converts err for the wire. Errors without a code are
// reported as internal.
func NewWireError(err error) *WireError {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return &WireError{Code: code, Message: errors.FullMessage(err), Detail: errors.GetDetail(err)}
}

func respond(id uint64, result any, err error) Response {
	if err != nil {
		return Response{ID: id, Error: NewWireError(err)}
	}
	return Response{ID: id, OK: true, Result: result}
}

// InitializeParams opens a session.
type InitializeParams struct {
	ClientVersion string               `json:"client_version" cbor:"client_version"`
	Capabilities  backend.Capabilities `json:"requested_capabilities" cbor:"requested_capabilities"`
}

// InitializeResult answers initialize.
type InitializeResult struct {
	ServerVersion  string               `json:"server_version" cbor:"server_version"`
	Backend        string               `json:"backend" cbor:"backend"`
	BackendVersion string               `json:"backend_version" cbor:"backend_version"`
	Capabilities   backend.Capabilities `json:"capabilities" cbor:"capabilities"`
}

// CancelResult answers cancel.
type CancelResult struct {
	Cancelled bool `json:"cancelled" cbor:"cancelled"`
}
