package accountdelivery

import (
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-playground/validator/v10"
)

// ValidAccountKind validates whether the account kind is supported.
var ValidAccountKind validator.Func = func(fl validator.FieldLevel) bool {
	if k, ok := fl.Field().Interface().(string); ok {
		return domain.AccountKind(k).Valid()
	}

	return false
}
