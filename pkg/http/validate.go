package http

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/arg-foo/zaza-sub000/pkg/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return util.ValidTicker(fl.Field().String())
	})
	return v
}

// rule describes how a failed validator tag is reported.
type rule struct {
	msg      string // %[1]s is the field, %[2]s the tag param
	textMsg  string // used instead of msg for string fields
	paramKey string
}

var rules = map[string]rule{
	"required": {msg: "%[1]s is required"},
	"datetime": {msg: "%[1]s must be a date formatted as %[2]s"},
	"dive":     {msg: "%[1]s contains an invalid value"},
	"min":      {msg: "%[1]s must be at least %[2]s", textMsg: "%[1]s must be at least %[2]s characters", paramKey: "min"},
	"max":      {msg: "%[1]s must be at most %[2]s", textMsg: "%[1]s must be at most %[2]s characters", paramKey: "max"},
	"gte":      {msg: "%[1]s must be greater than or equal to %[2]s", paramKey: "min"},
	"lte":      {msg: "%[1]s must be less than or equal to %[2]s", paramKey: "max"},
	"gt":       {msg: "%[1]s must be greater than %[2]s", paramKey: "value"},
	"lt":       {msg: "%[1]s must be less than %[2]s", paramKey: "value"},
	"oneof":    {msg: "%[1]s must be one of: %[2]s", paramKey: "options"},
	"ticker":   {msg: "%[1]s must be a ticker symbol of up to 16 letters, digits or . ^ = -"},
}

// ReadAndValidateRequest binds the request, applies default tags and validates it.
// A non-nil result is a []ValidationError.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return ValidationErrors(err)
	}
	if err := ValidateStruct(c.Request().Context(), req); err != nil {
		return ValidationErrors(err)
	}
	return nil
}

// ValidateStruct applies default tags and validates req outside an HTTP request.
func ValidateStruct(ctx context.Context, req interface{}) error {
	if err := defaults.Set(req); err != nil {
		return err
	}
	return validate.StructCtx(ctx, req)
}

// ValidationErrors converts err into the response detail list.
func ValidationErrors(err error) []ValidationError {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg = fmt.Sprint(he.Message)
		}
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: msg}}
	}

	out := make([]ValidationError, 0, len(fields))
	for _, fe := range fields {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) ValidationError {
	v := ValidationError{
		Code:   "ERR_" + strings.ToUpper(fe.Tag()),
		Field:  fe.Field(),
		Params: map[string]interface{}{},
	}
	r, ok := rules[fe.Tag()]
	if !ok {
		v.Message = fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
		return v
	}

	param := fe.Param()
	if fe.Tag() == "oneof" {
		v.Params["options"] = strings.Fields(param)
		param = strings.Join(strings.Fields(param), ", ")
	} else if r.paramKey != "" {
		v.Params[r.paramKey] = param
	}

	format := r.msg
	if r.textMsg != "" && fe.Kind() == reflect.String {
		format = r.textMsg
	}
	v.Message = fmt.Sprintf(format, fe.Field(), param)
	return v
}
