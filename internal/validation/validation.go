// Package validation holds the form checks that run before anything is sent
// to the backend.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const minPasswordLength = 8

// FieldError is one failed form field.
type FieldError struct {
	Field   string
	Message string
}

// Error is a local validation failure. Nothing was sent to the network.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return strings.Join(parts, "; ")
}

// UserMessage lets gateway.UserMessage show the field messages as is.
func (e *Error) UserMessage() string { return e.Error() }

// Field returns the message for one field.
func (e *Error) Field(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message, true
		}
	}
	return "", false
}

// Login is the first authentication step.
type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// Verify is the second-factor step.
type Verify struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,digits,min=4,max=8"`
}

// Register creates an account.
type Register struct {
	FirstName       string `json:"first_name" validate:"required,max=80"`
	LastName        string `json:"last_name" validate:"required,max=80"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=128,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// ForgotPassword starts a reset.
type ForgotPassword struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPassword completes a reset with the emailed code.
type ResetPassword struct {
	Email           string `json:"email" validate:"required,email"`
	Code            string `json:"code" validate:"required,digits,min=4,max=8"`
	Password        string `json:"password" validate:"required,min=8,max=128,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// Farm is the create-farm form.
type Farm struct {
	Name     string  `json:"name" validate:"required,max=120"`
	Location string  `json:"location" validate:"omitempty,max=200"`
	AreaHa   float64 `json:"area_ha" validate:"gte=0"`
}

// Plot is the create-plot form.
type Plot struct {
	FarmID int64   `json:"farm_id" validate:"required,gt=0"`
	Name   string  `json:"name" validate:"required,max=120"`
	AreaHa float64 `json:"area_ha" validate:"gt=0"`
	CropID int64   `json:"crop_id" validate:"omitempty,gt=0"`
}

// Task is the create-task form.
type Task struct {
	FarmID      int64  `json:"farm_id" validate:"required,gt=0"`
	PlotID      int64  `json:"plot_id" validate:"omitempty,gt=0"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	DueDate     string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

// Cost is the register-cost form.
type Cost struct {
	FarmID   int64   `json:"farm_id" validate:"required,gt=0"`
	TaskID   int64   `json:"task_id" validate:"omitempty,gt=0"`
	Category string  `json:"category" validate:"required,oneof=labor material equipment other"`
	Amount   float64 `json:"amount" validate:"gt=0"`
	Date     string  `json:"date" validate:"required,datetime=2006-01-02"`
}

// Validator wraps a configured validator/v10 instance.
type Validator struct {
	v *validator.Validate
}

var std = New()

// New builds a validator with the custom rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("password", passwordComplexity)
	_ = v.RegisterValidation("digits", allDigits)
	return &Validator{v: v}
}

// Struct validates s and returns *Error on failure.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate form: %w", err)
	}
	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

// Struct validates s with the package validator.
func Struct(s any) error { return std.Struct(s) }

func passwordComplexity(fl validator.FieldLevel) bool {
	var upper, digit, special bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && digit && special
}

func allDigits(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func message(fe validator.FieldError) string {
	field := label(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		if fe.Field() == "password" {
			return fmt.Sprintf("password must be at least %d characters", minPasswordLength)
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "password":
		return "password must contain an uppercase letter, a number and a special character"
	case "digits":
		return field + " must contain only digits"
	case "eqfield":
		return "passwords do not match"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return field + " must be a date in YYYY-MM-DD format"
	}
	return field + " is invalid"
}

func label(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
