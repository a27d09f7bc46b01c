package errorx

type Code string

func (c Code) String() string {
	return string(c)
}

const (
	// Client errors (4xx)
	CodeInvalid           Code = "INVALID"
	CodeInvalidIdentifier Code = "INVALID_IDENTIFIER"
	CodeValidationFailed  Code = "VALIDATION_FAILED"
	CodeNotFound          Code = "NOT_FOUND"

	// Server errors (5xx)
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeTaskFailed         Code = "TASK_FAILED"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeUpstreamError      Code = "UPSTREAM_SERVICE_ERROR"
	CodeUpstreamTimeout    Code = "UPSTREAM_TIMEOUT"
)
