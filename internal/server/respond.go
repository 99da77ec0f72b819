package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/drivelab/orgdrive/internal/logger"
	"github.com/drivelab/orgdrive/pkg/drive"
)

// maxBodyBytes caps how much request body a handler will read.
const maxBodyBytes = 1 << 20 // 1MB

// envelope is the fixed response wrapper.
type envelope struct {
	OK  *okBody  `json:"ok,omitempty"`
	Err *errBody `json:"err,omitempty"`
}

type okBody struct {
	Data any `json:"data"`
}

type errBody struct {
	Code    uint16 `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// listPayload is the shape of every list response.
type listPayload struct {
	Items     any    `json:"items"`
	PageSize  int    `json:"page_size"`
	Total     int    `json:"total"`
	Direction string `json:"direction,omitempty"`
	Cursor    string `json:"cursor,omitempty"`
}

// httpStatus maps a domain error code to an HTTP status.
func httpStatus(code drive.ErrorCode) int {
	switch code {
	case drive.ErrUnauthenticated:
		return http.StatusUnauthorized
	case drive.ErrUnauthorized:
		return http.StatusForbidden
	case drive.ErrNotFound:
		return http.StatusNotFound
	case drive.ErrBadRequest:
		return http.StatusBadRequest
	case drive.ErrAlreadyExists, drive.ErrAlreadyClaimed, drive.ErrConflict:
		return http.StatusConflict
	case drive.ErrUnreachable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeOK writes a success envelope.
func writeOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(envelope{OK: &okBody{Data: data}}); err != nil {
		logger.Warn("failed to encode response: %v", err)
	}
}

// writeErr writes an error envelope. Unknown error types are masked as
// internal errors so nothing leaks to the caller.
func writeErr(w http.ResponseWriter, err error) {
	var derr *drive.Error
	if !errors.As(err, &derr) {
		logger.Error("unhandled error: %v", err)
		derr = &drive.Error{Code: drive.ErrInternal, Message: "internal error"}
	}

	status := httpStatus(derr.Code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := envelope{Err: &errBody{
		Code:    uint16(status),
		Message: derr.Message,
		Field:   derr.Field,
	}}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		logger.Warn("failed to encode error response: %v", encErr)
	}
}

// decode reads a JSON body into v, translating malformed input into a
// BadRequest so the caller sees a 400 instead of a 500.
func decode(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return drive.BadRequest("body", "malformed JSON request body")
	}
	return nil
}

// errStatusLabel names an error outcome for metrics.
func errStatusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var derr *drive.Error
	if errors.As(err, &derr) {
		return derr.Code.String()
	}
	return "internal"
}
