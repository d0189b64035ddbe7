// Package handlers implements the HTTP endpoints of the materials service.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps err to its HTTP status. Server-side failures are masked
// with the default message for their code.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown || code == errors.CodeOK {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	resp := ErrorResponse{Code: code.String(), Message: errors.DefaultMessageForCode(code)}
	var ae *errors.AppError
	if status < http.StatusInternalServerError && stderrors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	writeJSON(w, status, resp)
}

// MaxJSONBodySize bounds a JSON request body.
const MaxJSONBodySize int64 = 1 << 20

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBodySize)).Decode(dst)
	switch {
	case err == nil, stderrors.Is(err, io.EOF):
		return nil
	case errors.GetCode(err) != errors.CodeUnknown:
		return err
	}
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return errors.New(errors.ErrCodeBadRequest, "request body too large").WithDetailf("limit=%d", maxErr.Limit)
	}
	return errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body")
}
