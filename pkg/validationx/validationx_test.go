package validationx

import (
	"strings"
	"testing"

	"github.com/ARUMANDESU/validation"
	"github.com/stretchr/testify/assert"
)

func TestUsernameRules(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  error
	}{
		{name: "ascii", username: "bob"},
		{name: "with digits and separators", username: "bob_42.smith-jr"},
		{name: "cyrillic", username: "Иван"},
		{name: "chinese", username: "李雷"},
		{name: "empty", username: "", wantErr: validation.ErrRequired},
		{name: "blank", username: "   ", wantErr: validation.ErrRequired},
		{name: "space inside", username: "bob smith", wantErr: ErrInvalidUsernameFormat},
		{name: "markup", username: "<script>", wantErr: ErrInvalidUsernameFormat},
		{name: "path", username: "../etc", wantErr: ErrInvalidUsernameFormat},
		{name: "too long", username: strings.Repeat("a", 65), wantErr: validation.ErrLengthOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.username, UsernameRules...)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			var verr validation.Error
			if assert.ErrorAs(t, err, &verr) {
				var want validation.Error
				assert.ErrorAs(t, tt.wantErr, &want)
				assert.Equal(t, want.Code(), verr.Code())
			}
		})
	}
}

func TestLanguageRules(t *testing.T) {
	for _, tag := range []string{"", "en", "zh-Hans", "ru-RU", "pt-BR"} {
		assert.NoError(t, validation.Validate(tag, LanguageRules...), tag)
	}
	for _, tag := range []string{"not a tag!", "@@", "1234"} {
		AssertValidationError(t, validation.Validate(tag, LanguageRules...), ErrInvalidLanguageTag)
	}
}

func TestIsLanguageTagList(t *testing.T) {
	assert.NoError(t, IsLanguageTagList.Validate([]string{"en", "ru"}))
	assert.NoError(t, IsLanguageTagList.Validate("en, zh-Hans,ru"))
	assert.Error(t, IsLanguageTagList.Validate([]string{"en", "@@"}))
	assert.Error(t, IsLanguageTagList.Validate(42))
}

func TestTimezoneRules(t *testing.T) {
	for _, tz := range []string{"", "UTC", "Asia/Shanghai", "America/New_York"} {
		assert.NoError(t, validation.Validate(tz, TimezoneRules...), tz)
	}
	for _, tz := range []string{"Local", "Mars/Olympus_Mons", "../etc/passwd"} {
		AssertValidationError(t, validation.Validate(tz, TimezoneRules...), ErrInvalidTimezone)
	}
}

func TestRequiredRule(t *testing.T) {
	var nilPtr *string
	empty := ""
	value := "x"

	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{name: "nil", value: nil, wantErr: true},
		{name: "nil pointer", value: nilPtr, wantErr: true},
		{name: "empty string pointer", value: &empty, wantErr: true},
		{name: "string pointer", value: &value},
		{name: "empty slice", value: []string{}, wantErr: true},
		{name: "slice", value: []string{"en"}},
		{name: "zero int", value: 0, wantErr: true},
		{name: "int", value: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Required.Validate(tt.value)
			if tt.wantErr {
				AssertValidationError(t, err, validation.ErrRequired)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
