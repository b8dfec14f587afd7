package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/BradenHooton/accounts/internal/models"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/secure/precis"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags of req and collects every failure.
func validateStruct(req interface{}) *models.ValidationError {
	verr := models.NewValidationError()

	err := validate.Struct(req)
	if err == nil {
		return verr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("request", err.Error())
		return verr
	}

	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), formatValidationError(fe))
	}
	return verr
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "eqfield":
		return "the two password fields didn't match"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// normalizeEmail lower-cases and trims an address for storage and lookup.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeUsername applies the PRECIS UsernameCasePreserved profile and then
// restricts the result to letters, digits and @ . + - _.
func normalizeUsername(username string) (string, error) {
	normalized, err := precis.UsernameCasePreserved.String(strings.TrimSpace(username))
	if err != nil {
		return "", errors.New("enter a valid username")
	}

	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return "", errors.New("may contain only letters, digits and @/./+/-/_ characters")
	}
	return normalized, nil
}

// emailLocalPart returns the part of an address before '@'.
func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
