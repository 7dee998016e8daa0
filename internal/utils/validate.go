package utils

import (
	"errors"
	"fmt"

	"github.com/banky/go-tomo/errs"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct checks the validate tags of v and reports the first
// failure as an *errs.ValidationError.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		return errs.Invalid(fe.Field(), "failed %s check", reason)
	}

	return errs.Invalid("input", "%s", err.Error())
}
