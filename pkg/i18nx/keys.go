package i18nx

// Error message keys
const (
	KeyInvalid               = "invalid"
	KeyInvalidIdentifier     = "invalid_identifier"
	KeyValidationFailedField = "validation_failed_field"
	KeyNotFound              = "not_found"
	KeyInternalError         = "internal_error"
	KeyTaskFailed            = "task_failed"
	KeyServiceUnavailable    = "service_unavailable"
	KeyUpstreamServiceError  = "upstream_service_error"
	KeyUpstreamTimeout       = "upstream_timeout"
)

// Greeting message keys
const (
	KeyCurrentLanguage = "current_language"
	KeyHello           = "hello"
	KeyCurrentTime     = "current_time"
	KeyPersonCats      = "person_cats"
)

// Field name keys
const (
	FieldLanguage = "language"
	FieldTimezone = "timezone"
	FieldUsername = "username"
)

// Template argument keys
const (
	ArgLanguage = "Language"
	ArgUsername = "Username"
	ArgTimezone = "Timezone"
	ArgTime     = "Time"
	ArgCount    = "Count"
)
