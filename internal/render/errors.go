package render

// RenderError carries a stable code alongside a human-readable message so
// the operation boundary can decide how to degrade without string matching.
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

const (
	ErrCodeCompilerNotFound = "COMPILER_NOT_FOUND"
	ErrCodeWorkspaceFailed  = "WORKSPACE_FAILED"
	ErrCodeCompileFailed    = "COMPILE_FAILED"
	ErrCodeRepairFailed     = "REPAIR_FAILED"
	ErrCodeConvertFailed    = "CONVERT_FAILED"
	ErrCodeInvalidImage     = "INVALID_IMAGE"
)

// NewRenderError creates a RenderError.
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}
