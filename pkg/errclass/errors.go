package errclass

import "fmt"

// PrivacyError is a stable, machine-readable error class.
type PrivacyError struct {
	Code    string
	Message string
}

func (e *PrivacyError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PrivacyError) Is(target error) bool {
	t, ok := target.(*PrivacyError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new PrivacyError with the same Code but a specific message.
func (e *PrivacyError) WithMessage(msg string) *PrivacyError {
	return &PrivacyError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new PrivacyError with a formatted message.
func (e *PrivacyError) WithMessagef(format string, args ...any) *PrivacyError {
	return &PrivacyError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// All stable error classes.
var (
	// ErrConfig covers missing secrets and unreadable repository state.
	ErrConfig = &PrivacyError{Code: "E_CONFIG"}
	// ErrFormat covers unparseable timestamp literals.
	ErrFormat = &PrivacyError{Code: "E_FORMAT"}
	// ErrRange is returned when a redate end precedes its start.
	ErrRange = &PrivacyError{Code: "E_RANGE"}
	// ErrUnsupportedPattern is returned for unknown reduction directives.
	ErrUnsupportedPattern = &PrivacyError{Code: "E_PATTERN_UNSUPPORTED"}
	// ErrCrypto covers internal derivation or encryption failures.
	ErrCrypto = &PrivacyError{Code: "E_CRYPTO"}
	// ErrAuthentication means a decryption integrity check failed: wrong
	// password or a tampered record. Never conflated with an empty store.
	ErrAuthentication = &PrivacyError{Code: "E_AUTHENTICATION"}
	// ErrStorage means the backing store is unreachable or corrupt.
	ErrStorage = &PrivacyError{Code: "E_STORAGE"}
	// ErrExternalTool means the history-rewrite capability failed mid-operation.
	ErrExternalTool = &PrivacyError{Code: "E_EXTERNAL_TOOL"}
	// ErrLockConflict means another invocation holds the repository lock.
	ErrLockConflict = &PrivacyError{Code: "E_LOCK_CONFLICT"}
)
