package common

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
)

// ErrorBody represents a consistent error payload returned by the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data wraps v in the {"data": ...} envelope.
func Data(w http.ResponseWriter, status int, v any) {
	JSON(w, status, map[string]any{"data": v})
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteError maps err onto the canonical error shape. Domain validation
// failures become 422 VALIDATION_ERROR; unknown errors become 500.
func WriteError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		message := appErr.Message
		if message == "" {
			message = appErr.Error()
		}
		JSONError(w, appErr.HTTPStatus, appErr.Code, message, appErr.Details)
		return
	}
	var fieldErr FieldError
	if errors.As(err, &fieldErr) {
		JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fieldErr.Error(), map[string]string{"field": fieldErr.FieldName()})
		return
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "request validation failed", validationDetails(verrs))
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

func validationDetails(verrs validator.ValidationErrors) []map[string]string {
	out := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, map[string]string{
			"field": fe.Namespace(),
			"rule":  fe.Tag(),
		})
	}
	return out
}
