package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"adaptive-quiz-service/internal/domain"
)

// envelope is the body of every REST response.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Completed *bool  `json:"completed,omitempty"`
	Message   string `json:"message,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondOK(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound, domain.KindNoQuestions:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	respondErrorData(w, err, nil)
}

// respondErrorData writes the failure envelope. A quiz that was finalized but
// not fully stored is still handed back, as data when given and as the bare
// result otherwise, so the caller does not lose it.
func respondErrorData(w http.ResponseWriter, err error, data any) {
	kind := domain.KindOf(err)
	body := envelope{Success: false, Kind: string(kind), Message: err.Error()}
	if kind == domain.KindInternal {
		log.Printf("internal error: %v", err)
		body.Message = "internal error"
	}
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) && storeErr.Result != nil {
		completed := true
		body.Completed = &completed
		body.Data = storeErr.Result
		if data != nil {
			body.Data = data
		}
	}
	respondJSON(w, statusFor(kind), body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.Invalid("body", "invalid JSON body: %v", err)
	}
	return nil
}
