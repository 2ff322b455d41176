package api

import (
	"encoding/json"
	"net/http"
)

// Kind classifies a normalized transport fault.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthExpired
	KindForbidden
	KindNotFound
	KindValidation
	KindServer
	KindNetwork
)

// Messages produced by fault normalization. MsgSessionExpired is also the
// error state the session records after a forced logout.
const (
	MsgSessionExpired  = "Session expired. Please login again."
	MsgForbidden       = "You do not have permission to access this resource."
	MsgNotFound        = "Resource not found."
	MsgValidation      = "Validation error occurred."
	MsgInternalServer  = "Internal server error. Please try again later."
	genericErrorPrefix = "Error: "
)

// Error is the single normalized fault type the rest of the client sees.
// Higher layers never re-interpret status codes; they store or display
// Message and, for KindAuthExpired, react to the forced logout that the
// transport has already triggered.
type Error struct {
	Kind    Kind
	Status  int    // 0 for client-side/network faults
	Message string // human-readable, per the fixed mapping table
	Detail  string // backend-provided detail, when the body carried one
}

func (e *Error) Error() string { return e.Message }

// detailBody is the error payload shape the backend emits.
type detailBody struct {
	Detail string `json:"detail"`
}

func extractDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var b detailBody
	if err := json.Unmarshal(body, &b); err != nil {
		return ""
	}
	return b.Detail
}

// normalizeStatus maps an HTTP failure status to its domain error. The
// mapping is fixed and must not drift:
//
//	401        -> MsgSessionExpired (forced logout handled by the transport)
//	403        -> MsgForbidden
//	404        -> MsgNotFound
//	422        -> backend detail if present, else MsgValidation
//	5xx        -> MsgInternalServer
//	other      -> backend detail if present, else "Error: " + status text
func normalizeStatus(status int, body []byte) *Error {
	detail := extractDetail(body)
	e := &Error{Status: status, Detail: detail}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthExpired
		e.Message = MsgSessionExpired
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
		e.Message = MsgForbidden
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = MsgNotFound
	case status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
		if detail != "" {
			e.Message = detail
		} else {
			e.Message = MsgValidation
		}
	case status >= http.StatusInternalServerError:
		e.Kind = KindServer
		e.Message = MsgInternalServer
	default:
		e.Kind = KindUnknown
		if detail != "" {
			e.Message = detail
		} else {
			e.Message = genericErrorPrefix + http.StatusText(status)
		}
	}
	return e
}

// normalizeNetwork wraps a fault where no response reached the client.
func normalizeNetwork(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: genericErrorPrefix + err.Error(),
	}
}
