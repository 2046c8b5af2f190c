package chroma

import "fmt"

type OperationErrorCode string

const (
	ErrCodeInvalidInput OperationErrorCode = "INVALID_INPUT"
	ErrCodeRequest      OperationErrorCode = "REQUEST_FAILED"
	ErrCodeDecode       OperationErrorCode = "DECODE_FAILED"
	ErrCodeHTTPStatus   OperationErrorCode = "HTTP_STATUS"
	ErrCodeUnavailable  OperationErrorCode = "UNAVAILABLE"
)

// OperationError carries the operation name and a stable code so callers
// can log and classify store failures uniformly.
type OperationError struct {
	Op         string
	Code       OperationErrorCode
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "chroma operation error"
	}
	base := fmt.Sprintf("chroma %s [%s]", e.Op, e.Code)
	if e.StatusCode != 0 {
		base = fmt.Sprintf("%s status=%d", base, e.StatusCode)
	}
	if e.Message != "" {
		base = fmt.Sprintf("%s: %s", base, e.Message)
	}
	if e.Cause != nil {
		base = fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *OperationError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func opErr(op string, code OperationErrorCode, msg string, cause error) *OperationError {
	return &OperationError{Op: op, Code: code, Message: msg, Cause: cause}
}
