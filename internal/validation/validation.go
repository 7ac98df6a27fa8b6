package validation

import (
	"encoding/json"
	"net/http"

	"revview/internal/errors"
)

type Validator interface {
	Validate() error
}

// DecodeRequest reads a JSON body into v and validates it. Both failures are
// reported as VALIDATION errors.
func DecodeRequest(r *http.Request, v Validator) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ValidationError("invalid request body", err.Error())
	}
	if err := v.Validate(); err != nil {
		if _, ok := err.(*errors.Error); ok {
			return err
		}
		return errors.ValidationError(err.Error(), nil)
	}
	return nil
}
