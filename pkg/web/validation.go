package web

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// GetErrorMsg returns a human readable suffix for the failed validation tag.
func GetErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " field is required"
	case "min":
		return " must be at least " + fe.Param()
	case "max":
		return " must be at most " + fe.Param()
	case "nefield":
		return " must differ from " + fe.Param()
	case "amount":
		return " must be a positive amount with at most two decimal places"
	case "accountkind":
		return " must be one of SAVINGS, CHECKING, BUSINESS"
	}

	return " is invalid"
}

// BindError converts a request binding error into the response envelope.
func BindError(err error) Response {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		field := ve[0]
		return Response{Error: field.Field() + GetErrorMsg(field)}
	}

	return Error(err)
}
