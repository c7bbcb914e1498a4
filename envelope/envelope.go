// Package envelope defines the request/response shapes that cross the wire
// between neatoohttp and neatooclient, following the resolution of the
// §4.4/Scenario-1 framing gap in SPEC_FULL §7: a request is a small fixed
// JSON frame carrying the delegate name, and each parameter inside it is
// independently run through wire.Codec in the negotiated Ordinal/Named
// format; a successful response body is the bare Codec-encoded result, and
// denials and errors are the fixed payloads below, told apart by HTTP
// status. A literal
// "RemoteRequest struct itself ordinal-serialized" framing was considered
// and dropped — Parameters is type-erased ([]any) with per-call declared
// types coming from the delegate's signature, not a single static
// OrdinalMetadata, so threading it through registry.Entry would need a
// fake per-call type registration for no protocol benefit over encoding
// each element independently.
package envelope

import (
	"encoding/json"

	"github.com/arc-self/neatoo/neatooerr"
)

// RequestFrame is the fixed outer shape of a call. Parameters holds one
// already Codec-encoded value per declared parameter (each itself an
// ordinal array, named object, or bare scalar depending on its own
// interface-ness and the negotiated format).
type RequestFrame struct {
	DelegateName string            `json:"delegateName"`
	Parameters   []json.RawMessage `json:"parameters"`
}

// ErrorPayload is the fixed-shape body returned for every non-2xx,
// non-403 outcome (BadRequest, UnknownDelegate, SerializationMismatch,
// MissingService, Canceled, SaveNotSupported, Domain).
type ErrorPayload struct {
	Kind    neatooerr.Kind `json:"kind"`
	Message string         `json:"message"`
}

// DenialPayload is the fixed-shape body returned with HTTP 403 when the
// authorization chain denies a call.
type DenialPayload struct {
	Reason string `json:"reason"`
}

// StatusForKind maps an error Kind to the HTTP status used purely for
// transport-level observability; it is never part of the protocol contract
// a client is required to branch on beyond distinguishing 200 (result),
// 403 (denial), and everything else (error).
func StatusForKind(kind neatooerr.Kind) int {
	switch kind {
	case neatooerr.KindBadRequest, neatooerr.KindSerializationMismatch:
		return 400
	case neatooerr.KindUnknownDelegate:
		return 404
	case neatooerr.KindMissingService:
		return 500
	case neatooerr.KindNotAuthorized:
		return 403
	case neatooerr.KindCanceled:
		return 499
	case neatooerr.KindSaveNotSupported:
		return 409
	case neatooerr.KindDomain:
		return 422
	default:
		return 500
	}
}
