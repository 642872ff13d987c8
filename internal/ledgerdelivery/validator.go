package ledgerdelivery

import (
	"reflect"

	"github.com/go-petr/pet-ledger/internal/policy"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidAmount validates whether the amount is positive and fits the ledger scale.
var ValidAmount validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}

	return amount.IsPositive() && amount.Equal(amount.Truncate(policy.Scale))
}

// decimalValue exposes decimal fields to the validator as their string form.
func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}

	return nil
}

// RegisterValidators registers the amount validation and the decimal type on v.
func RegisterValidators(v *validator.Validate) error {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	return v.RegisterValidation("amount", ValidAmount)
}
