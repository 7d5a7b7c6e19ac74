package auth

import (
	"context"
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

const commandTimeout = time.Second * 10

var usernamePattern = regexp.MustCompile(`^[\x{4e00}-\x{9fa5}_a-zA-Z0-9]+$`)

// Password and username bounds for account forms
const (
	PasswordMinLength = 6
	PasswordMaxLength = 16
	UsernameMinLength = 3
	UsernameMaxLength = 20
)

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(PasswordMinLength, PasswordMaxLength),
	}
}

func usernameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(UsernameMinLength, UsernameMaxLength),
		validation.Match(usernamePattern).Error("may only contain letters, digits, underscores or CJK characters"),
	}
}

// ValidateStringEquals checks that the value matches str
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func confirmPasswordRules(password string) []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.By(ValidateStringEquals(password)),
	}
}

func cancelledError(ctx context.Context, msg string) error {
	return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, msg)
}

func validationError(err error, msg string) error {
	return goerrors.FromOzzoValidation(err, msg).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode("VALIDATION_FAILED")
}

// ValidationFields returns the per field messages of a validation error
func ValidationFields(err error) map[string]string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return nil
	}
	return richErr.ValidationMap()
}

func txError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func lookupError(err error, msg string) error {
	if IsRecordNotFound(err) {
		return ErrNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func bindError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithCode(goerrors.CodeBadRequest)
}
