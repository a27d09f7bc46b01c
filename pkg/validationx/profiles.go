package validationx

import (
	"github.com/ARUMANDESU/validation"
)

var (
	UsernameRules = []validation.Rule{
		Required,
		validation.RuneLength(1, 64),
		IsUsername,
	}

	LanguageRules = []validation.Rule{
		validation.Length(0, 35),
		IsLanguageTag,
	}

	TimezoneRules = []validation.Rule{
		validation.Length(0, 64),
		IsTimezone,
	}
)
