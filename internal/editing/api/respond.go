package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/prosessportal/editing/internal/platform/errors"
)

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func decodeJSON(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a domain error to its HTTP status and a structured body.
// Unrecognized errors become opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		writeJSON(w, domainErr.Code.HTTPStatus(), errorBody{
			Code:     string(domainErr.Code),
			Message:  domainErr.Message,
			Metadata: domainErr.Metadata,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError,
		errorBody{Code: "INTERNAL", Message: "internal server error"})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest,
		errorBody{Code: string(apperrors.CodeInvalidArgument), Message: message})
}
