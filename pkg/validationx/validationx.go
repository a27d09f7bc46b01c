package validationx

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/ARUMANDESU/validation"
	"golang.org/x/text/language"
)

var ErrInvalidUsernameFormat = validation.NewError(
	"validation_is_username",
	"must contain only letters, digits, underscores, hyphens and periods",
)

var ErrInvalidLanguageTag = validation.NewError(
	"validation_is_language_tag",
	"must be a valid BCP 47 language tag",
)

var ErrInvalidTimezone = validation.NewError(
	"validation_is_timezone",
	"must be a valid IANA time zone name",
)

// Required is a validation rule that checks if a value is not empty.
var Required = RequiredRule{}

// Allow Unicode letters and digits plus _ - .
var usernameRegex = regexp.MustCompile(`^[\p{L}\p{M}\p{N}_.\-]+$`)

var IsUsername = validation.By(func(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil // Let Required handle emptiness
	}
	if !usernameRegex.MatchString(s) {
		return ErrInvalidUsernameFormat
	}
	return nil
})

var IsLanguageTag = validation.By(func(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := language.Parse(s); err != nil {
		return ErrInvalidLanguageTag
	}
	return nil
})

var IsLanguageTagList = validation.By(func(value any) error {
	var tags []string
	switch v := value.(type) {
	case []string:
		tags = v
	case string:
		tags = strings.Split(v, ",")
	default:
		return ErrInvalidLanguageTag
	}
	for _, tag := range tags {
		if err := IsLanguageTag.Validate(strings.TrimSpace(tag)); err != nil {
			return err
		}
	}
	return nil
})

// IsTimezone accepts IANA zone names. "Local" is rejected because it names
// the host's zone rather than a portable one.
var IsTimezone = validation.By(func(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if s == "Local" {
		return ErrInvalidTimezone
	}
	if _, err := time.LoadLocation(s); err != nil {
		return ErrInvalidTimezone
	}
	return nil
})

type RequiredRule struct{}

func (r RequiredRule) Validate(value any) error {
	value, isNil := validation.Indirect(value)
	if isNil || isEmpty(value) {
		return validation.ErrRequired
	}

	return nil
}

func isEmpty(value any) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Array, reflect.Map, reflect.Slice:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Invalid:
		return true
	case reflect.Interface, reflect.Ptr:
		if v.IsNil() {
			return true
		}
		return isEmpty(v.Elem().Interface())
	case reflect.Struct:
		if t, ok := value.(time.Time); ok {
			return t.IsZero()
		}
	}

	return false
}

func AssertValidationErrors(t *testing.T, err error, expected error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %v, got nil", expected)
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected error to be of type validation.Errors, got %T: %v", err, err)
	}

	var expectedVerrs validation.Errors
	if !errors.As(expected, &expectedVerrs) {
		t.Fatalf("expected expected error to be of type validation.Errors, got %T: %v", expected, expected)
	}

	if len(verrs) != len(expectedVerrs) {
		t.Fatalf("expected number of validation errors to match, got %v and %v", verrs, expectedVerrs)
	}

	for field, expectedErr := range expectedVerrs {
		if actualErr, found := verrs[field]; !found {
			t.Errorf("field %s: expected error %v, got none", field, expectedErr)
		} else {
			AssertValidationError(t, actualErr, expectedErr)
		}
	}
}

func AssertValidationError(t *testing.T, err error, expected error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %v, got nil", expected)
	}

	var verr validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected error to be of type validation.Error, got %T: %v", err, err)
	}
	var expectedVerr validation.Error
	if !errors.As(expected, &expectedVerr) {
		t.Fatalf("expected expected error to be of type validation.Error, got %T: %v", expected, expected)
	}

	if verr.Code() != expectedVerr.Code() || verr.Message() != expectedVerr.Message() {
		t.Errorf("expected validation error to match, got %v and %v", verr, expectedVerr)
	}
}
