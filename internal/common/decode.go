package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared request validator. Field names in errors use
// the json tag so clients see the names they sent.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// DecodeJSON decodes the request body into dst and validates it.
// Malformed JSON yields a 400 AppError; domain errors raised by custom
// unmarshalers and validator failures are returned unchanged.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return BadRequest("request body required", nil)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var fieldErr FieldError
		if errors.As(err, &fieldErr) {
			return err
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return NewAppError("PAYLOAD_TOO_LARGE", "request entity too large", http.StatusRequestEntityTooLarge, err)
		}
		if errors.Is(err, io.EOF) {
			return BadRequest("request body required", err)
		}
		return BadRequest(fmt.Sprintf("invalid request body: %v", err), err)
	}
	return Validator().Struct(dst)
}
