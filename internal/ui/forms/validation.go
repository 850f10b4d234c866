package forms

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/Its-donkey/compass-auth/internal/ui/model"
)

// PasswordSpecials is the set of special characters a signup password must
// draw from.
const PasswordSpecials = "@$!%*?&"

// PasswordMinLength is the minimum signup password length.
const PasswordMinLength = 8

// printable ASCII without whitespace or '@' on both sides of the single '@',
// and at least one '.' somewhere after it.
var emailPattern = regexp.MustCompile(`^[!-?A-~]+@[!-?A-~]+\.[!-?A-~]+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// loginRules only require credentials to be present so previously issued
// passwords are always accepted.
type loginRules struct {
	Email    string `form:"email" validate:"required,authemail"`
	Password string `form:"password" validate:"required"`
}

type signupRules struct {
	Email           string `form:"email" validate:"required,authemail"`
	Password        string `form:"password" validate:"required,strongpassword"`
	Nickname        string `form:"nickname" validate:"required,min=2,max=20"`
	PasswordConfirm string `form:"passwordConfirm" validate:"required,eqfield=Password"`
	AgreeTerms      bool   `form:"agreeTerms" validate:"required"`
}

var fieldMessages = map[string]map[string]string{
	model.FieldEmail: {
		"required":  "Please enter your email.",
		"authemail": "Please enter a valid email address.",
	},
	model.FieldPassword: {
		"required":       "Please enter your password.",
		"strongpassword": "Password must be at least 8 characters and include upper and lower case letters, a number and one of @$!%*?&.",
	},
	model.FieldNickname: {
		"required": "Please enter a nickname.",
		"min":      "Nickname must be between 2 and 20 characters.",
		"max":      "Nickname must be between 2 and 20 characters.",
	},
	model.FieldPasswordConfirm: {
		"required": "Please confirm your password.",
		"eqfield":  "Passwords do not match.",
	},
	model.FieldAgreeTerms: {
		"required": "Please agree to the terms of service.",
	},
}

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if name := fld.Tag.Get("form"); name != "" {
				return name
			}
			return strings.ToLower(fld.Name)
		})
		// Both registrations only fail for empty tags or nil funcs.
		_ = v.RegisterValidation("authemail", func(fl validator.FieldLevel) bool {
			return IsValidEmail(fl.Field().String())
		})
		_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
			return IsStrongPassword(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// ValidateAuthForm checks the fields required by mode and returns one
// message per failing field. An empty result means the form can be submitted.
// Fields that do not belong to mode are never inspected.
func ValidateAuthForm(mode model.AuthMode, fields model.AuthFields) model.FieldErrors {
	var target any
	if mode == model.ModeSignup {
		target = signupRules{
			Email:           fields.Email,
			Password:        fields.Password,
			Nickname:        fields.Nickname,
			PasswordConfirm: fields.PasswordConfirm,
			AgreeTerms:      fields.AgreeTerms,
		}
	} else {
		target = loginRules{Email: fields.Email, Password: fields.Password}
	}

	errs := make(model.FieldErrors)
	err := validatorInstance().Struct(target)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// Only reachable if the rule structs themselves are malformed.
		errs[model.FieldEmail] = err.Error()
		return errs
	}
	for _, fe := range fieldErrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs[fe.Field()] = messageFor(fe.Field(), fe.Tag())
	}
	return errs
}

func messageFor(field, tag string) string {
	if byTag, ok := fieldMessages[field]; ok {
		if msg, ok := byTag[tag]; ok {
			return msg
		}
	}
	return "Invalid value."
}

// IsValidEmail reports whether value has the local@domain.tld shape.
func IsValidEmail(value string) bool {
	return emailPattern.MatchString(value)
}

// IsStrongPassword reports whether value satisfies the signup password
// policy: at least PasswordMinLength characters drawn only from ASCII
// letters, digits and PasswordSpecials, with at least one of each class.
func IsStrongPassword(value string) bool {
	if len(value) < PasswordMinLength {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}
