// Package errors provides structured error types for commitgen.
// Every failure carries a Kind so callers can tell a malformed diff apart from
// the recoverable failures the pipeline absorbs on its own.
package errors

import (
	"errors"
	"regexp"
	"strings"
)

// Kind represents the category of an error.
type Kind uint8

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindParse indicates input that is not a unified diff.
	KindParse
	// KindConfig indicates a configuration error.
	KindConfig
	// KindGit indicates a git operation error.
	KindGit
	// KindAI indicates a text generation error.
	KindAI
	// KindCache indicates a response cache error.
	KindCache
	// KindIO indicates a file I/O error.
	KindIO
	// KindValidation indicates a validation error.
	KindValidation
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindTimeout indicates a timeout error.
	KindTimeout
	// KindCanceled indicates the operation was canceled.
	KindCanceled
	// KindInternal indicates an internal error.
	KindInternal
)

// String returns the kind's short name.
func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindConfig:
		return "configuration"
	case KindGit:
		return "git"
	case KindAI:
		return "ai"
	case KindCache:
		return "cache"
	case KindIO:
		return "io"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Error is the standard error type for commitgen.
type Error struct {
	// Kind is the category of the error.
	Kind Kind
	// Op is the operation being performed when the error occurred.
	Op string
	// Message is a human-readable error message.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		if e.Message != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches this error.
// A target without Op matches on Kind alone, which lets package-level
// sentinels stand in for a whole category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op
}

// New creates an Error with no operation. With an empty message it works as
// a kind sentinel for errors.Is.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap wraps err with a kind and the operation that failed.
func Wrap(err error, kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// GetKind returns the Kind of err, or KindUnknown for foreign errors.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind checks if an error is of a specific kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// Parse creates a parse error. It is the only error the commit pipeline returns.
func Parse(op, message string) *Error {
	return &Error{Kind: KindParse, Op: op, Message: message}
}

// Config creates a configuration error.
func Config(op, message string) *Error {
	return &Error{Kind: KindConfig, Op: op, Message: message}
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(err error, op, message string) *Error {
	return Wrap(err, KindConfig, op, message)
}

// Git creates a git operation error.
func Git(op, message string) *Error {
	return &Error{Kind: KindGit, Op: op, Message: message}
}

// GitWrap wraps an error as a git error.
func GitWrap(err error, op, message string) *Error {
	return Wrap(err, KindGit, op, message)
}

// AI creates a generation error.
func AI(op, message string) *Error {
	return &Error{Kind: KindAI, Op: op, Message: message}
}

// CacheWrap wraps an error as a cache error.
func CacheWrap(err error, op, message string) *Error {
	return Wrap(err, KindCache, op, message)
}

// Validation creates a validation error.
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// IOWrap wraps an error as an I/O error.
func IOWrap(err error, op, message string) *Error {
	return Wrap(err, KindIO, op, message)
}

// NotFound creates a not found error.
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// TimeoutWrap wraps an error as a timeout error.
func TimeoutWrap(err error, op, message string) *Error {
	return Wrap(err, KindTimeout, op, message)
}

// Patterns for credentials that must never reach a log line. Provider SDK
// errors sometimes echo the request, key included.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bsk-(?:proj-|svc-|ant-)?[a-zA-Z0-9_-]{20,}\b`),
	regexp.MustCompile(`\bAIza[a-zA-Z0-9_-]{35,}\b`),
	regexp.MustCompile(`\bgh[posh]_[a-zA-Z0-9]{36,}\b`),
	regexp.MustCompile(`\bBearer\s+[a-zA-Z0-9_.-]{20,}\b`),
	regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`),
}

// RedactSensitive replaces API keys and tokens in s with a placeholder.
func RedactSensitive(s string) string {
	for _, pattern := range sensitivePatterns {
		s = pattern.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// RedactError returns err with sensitive data removed from its message.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	redacted := RedactSensitive(err.Error())
	if redacted == err.Error() {
		return err
	}
	return errors.New(redacted)
}

// AIWrapSafe wraps a provider error as a generation error with secrets redacted.
func AIWrapSafe(err error, op, message string) *Error {
	if err == nil {
		return AI(op, message)
	}
	return Wrap(RedactError(err), KindAI, op, message)
}
