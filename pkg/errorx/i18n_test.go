package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"gitlab.com/ucmsv2/ctxprop/pkg/i18nx"
)

var errZone = errors.New("unknown time zone Mars/Base")

func TestI18nError_Wrapping(t *testing.T) {
	err := NewInvalidIdentifier(i18nx.FieldTimezone, "Mars/Base").WithCause(errZone)
	wrapped := Wrap(err, "ctxs.ActivateTimezone")

	assert.ErrorIs(t, wrapped, errZone)
	assert.True(t, IsInvalidIdentifier(wrapped))
	assert.True(t, IsCode(wrapped, CodeInvalidIdentifier))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(nil, CodeInvalidIdentifier))
	assert.False(t, IsCode(errZone, CodeInvalidIdentifier))

	var i18nErr *I18nError
	require.ErrorAs(t, wrapped, &i18nErr)
	assert.Equal(t, "Mars/Base", i18nErr.MessageArgs["Value"])
	assert.Equal(t, "ctxs.ActivateTimezone: [INVALID_IDENTIFIER] invalid_identifier: unknown time zone Mars/Base", wrapped.Error())
	assert.NoError(t, Wrap(nil, "op"))
}

func TestI18nError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  *I18nError
		want int
	}{
		{err: NewInvalidRequest(), want: http.StatusBadRequest},
		{err: NewInvalidIdentifier(i18nx.FieldLanguage, "xx"), want: http.StatusBadRequest},
		{err: NewValidationFieldFailed(i18nx.FieldUsername), want: http.StatusBadRequest},
		{err: NewNotFound(), want: http.StatusNotFound},
		{err: NewInternalError(), want: http.StatusInternalServerError},
		{err: NewTaskFailed("hello"), want: http.StatusInternalServerError},
		{err: NewServiceUnavailable(), want: http.StatusServiceUnavailable},
		{err: NewUpstreamServiceError(), want: http.StatusBadGateway},
		{err: NewUpstreamTimeout(), want: http.StatusGatewayTimeout},
		{err: New("custom").WithHTTPCode(http.StatusTeapot), want: http.StatusTeapot},
		{err: &I18nError{Code: CodeNotFound}, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.err.Code, tt.err.MessageKey), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatusCode())
		})
	}
}

func TestI18nError_Localize(t *testing.T) {
	bundle, err := i18nx.NewBundle(language.English)
	require.NoError(t, err)

	tests := []struct {
		name string
		lang string
		err  *I18nError
		want string
	}{
		{
			name: "english",
			lang: "en",
			err:  NewInvalidIdentifier(i18nx.FieldTimezone, "Mars/Base"),
			want: "Unknown timezone identifier: Mars/Base",
		},
		{
			name: "russian",
			lang: "ru",
			err:  NewTaskFailed("hello"),
			want: i18nx.Localize(i18n.NewLocalizer(bundle, "ru"), i18nx.KeyTaskFailed, map[string]any{"Task": "hello"}),
		},
		{
			name: "chinese",
			lang: "zh-Hans",
			err:  NewNotFound(),
			want: "资源不存在",
		},
		{
			name: "unknown key falls back to the key",
			lang: "en",
			err:  New("no_such_message"),
			want: "no_such_message",
		},
		{
			name: "args merged",
			lang: "en",
			err:  NewValidationFieldFailed("x").WithArgs(map[string]any{"Field": "username"}),
			want: "Validation failed for field username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Localize(i18n.NewLocalizer(bundle, tt.lang)))
		})
	}

	assert.Equal(t, i18nx.KeyNotFound, NewNotFound().Localize(nil))
}
