package validate

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return IsClock(fl.Field().String())
	})
	return &Validator{v: v}
}

// IsClock reports whether s is a 24h HH:MM time.
func IsClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// Validate implements echo.Validator. Failures come back as a 400 listing
// every offending field.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return echo.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "notblank":
		return field + " must not be blank"
	case "hhmm":
		return field + " must use HH:MM format"
	case "eqfield":
		return field + " does not match"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// Bind decodes the request into v and validates it, returning a 400
// HTTPError on either failure.
func Bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprint(he.Message))
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return Check(c, v)
}

// Check validates v with the echo instance's validator, or a fresh one when
// none is registered.
func Check(c echo.Context, v interface{}) error {
	if c.Echo().Validator == nil {
		return New().Validate(v)
	}
	return c.Validate(v)
}
