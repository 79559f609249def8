package gateway

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report json names so messages match the request body
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// validateStruct runs the struct tags and converts the first failure
func validateStruct(v interface{}) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid("", err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "is required")
	case "oneof":
		return invalid(fe.Field(), fmt.Sprintf("must be one of [%s]", fe.Param()))
	case "gt":
		return invalid(fe.Field(), fmt.Sprintf("must be greater than %s", fe.Param()))
	case "min":
		return invalid(fe.Field(), fmt.Sprintf("must be at least %s", fe.Param()))
	case "max", "lte":
		return invalid(fe.Field(), fmt.Sprintf("must be at most %s", fe.Param()))
	}
	return invalid(fe.Field(), fmt.Sprintf("failed %s validation", fe.Tag()))
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
