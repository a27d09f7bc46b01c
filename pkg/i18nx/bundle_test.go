package i18nx

import (
	"testing"
	"testing/fstest"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewBundle(t *testing.T) {
	t.Parallel()

	bundle, err := NewBundle(language.English)
	require.NoError(t, err)

	tags := map[string]bool{}
	for _, tag := range bundle.LanguageTags() {
		tags[tag.String()] = true
	}
	assert.True(t, tags["en"])
	assert.True(t, tags["ru"])
	assert.True(t, tags["zh-Hans"])
}

func TestLocalize(t *testing.T) {
	t.Parallel()

	bundle, err := NewBundle(language.English)
	require.NoError(t, err)

	tests := []struct {
		lang string
		want string
	}{
		{lang: "en", want: "Hello, bob!"},
		{lang: "ru", want: "Привет, bob!"},
		{lang: "zh-Hans", want: "你好，bob！"},
		{lang: "fr", want: "Hello, bob!"},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			t.Parallel()

			localizer := i18n.NewLocalizer(bundle, tt.lang)
			assert.Equal(t, tt.want, Localize(localizer, KeyHello, map[string]any{ArgUsername: "bob"}))
		})
	}
}

func TestLocalize_Fallbacks(t *testing.T) {
	t.Parallel()

	bundle, err := NewBundle(language.English)
	require.NoError(t, err)

	assert.Equal(t, "no_such_key", Localize(i18n.NewLocalizer(bundle, "en"), "no_such_key", nil))
	assert.Equal(t, KeyHello, Localize(nil, KeyHello, nil))
	assert.Equal(t, KeyPersonCats, LocalizePlural(nil, KeyPersonCats, 2, nil))
}

func TestLocalizePlural(t *testing.T) {
	t.Parallel()

	bundle, err := NewBundle(language.English)
	require.NoError(t, err)

	tests := []struct {
		lang  string
		count int
		want  string
	}{
		{lang: "en", count: 1, want: "bob has 1 cat."},
		{lang: "en", count: 2, want: "bob has 2 cats."},
		{lang: "ru", count: 1, want: "У bob 1 кошка."},
		{lang: "ru", count: 3, want: "У bob 3 кошки."},
		{lang: "ru", count: 5, want: "У bob 5 кошек."},
		{lang: "zh-Hans", count: 2, want: "bob 有 2 只猫。"},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			t.Parallel()

			localizer := i18n.NewLocalizer(bundle, tt.lang)
			got := LocalizePlural(localizer, KeyPersonCats, tt.count, map[string]any{ArgUsername: "bob"})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewBundleFS_BrokenFile(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"locales/active.en.toml": {Data: []byte(`hello = "unterminated`)},
	}
	_, err := NewBundleFS(language.English, fsys)
	assert.Error(t, err)
}
