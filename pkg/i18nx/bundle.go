package i18nx

import (
	"fmt"
	"io/fs"
	"maps"
	"path"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	ctxprop "gitlab.com/ucmsv2/ctxprop"
)

const localesDir = "locales"

// NewBundle loads every locales/*.toml file embedded in the module. The file
// name carries the language tag, e.g. active.zh-Hans.toml.
func NewBundle(defaultLanguage language.Tag) (*i18n.Bundle, error) {
	return NewBundleFS(defaultLanguage, ctxprop.Locales)
}

func NewBundleFS(defaultLanguage language.Tag, fsys fs.FS) (*i18n.Bundle, error) {
	bundle := i18n.NewBundle(defaultLanguage)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(fsys, path.Join(localesDir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list locale files: %w", err)
	}
	for _, file := range files {
		if _, err := bundle.LoadMessageFileFS(fsys, file); err != nil {
			return nil, fmt.Errorf("failed to load locale file %s: %w", file, err)
		}
	}

	return bundle, nil
}

// Localize renders messageID with the localizer and falls back to the
// message ID itself when no translation exists.
func Localize(localizer *i18n.Localizer, messageID string, data map[string]any) string {
	if localizer == nil {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil || msg == "" {
		return messageID
	}
	return msg
}

// LocalizePlural is Localize for messages with plural forms. count selects
// the form and is also available to the template as .Count.
func LocalizePlural(localizer *i18n.Localizer, messageID string, count int, data map[string]any) string {
	if localizer == nil {
		return messageID
	}
	tmpl := make(map[string]any, len(data)+1)
	maps.Copy(tmpl, data)
	tmpl[ArgCount] = count

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: tmpl,
		PluralCount:  count,
	})
	if err != nil || msg == "" {
		return messageID
	}
	return msg
}
