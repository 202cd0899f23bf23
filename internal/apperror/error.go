package apperror

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
)

// AppError is a coded error carrying where and when it was raised.
type AppError struct {
	Code      Code
	Message   string
	Context   string
	Timestamp time.Time
	cause     error
	stack     []uintptr
}

var _ slog.LogValuer = (*AppError)(nil)

func (e *AppError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (code: %s, context: %s)", e.Code, e.Message, e.Code, e.Context)
	}
	return fmt.Sprintf("%s: %s (code: %s)", e.Code, e.Message, e.Code)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// LogValue renders the error as a group when passed to the logger.
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("message", e.Message),
	}
	if e.Context != "" {
		attrs = append(attrs, slog.String("context", e.Context))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	if at := e.Origin(); at != "" {
		attrs = append(attrs, slog.String("at", at))
	}
	return slog.GroupValue(attrs...)
}

// Origin returns "file:line" of the frame that created the error.
func (e *AppError) Origin() string {
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if frame.File != "" && !strings.Contains(frame.File, "runtime/") {
			return fmt.Sprintf("%s:%d", shortFile(frame.File), frame.Line)
		}
		if !more {
			return ""
		}
	}
}

func shortFile(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		if j := strings.LastIndex(path[:i], "/"); j >= 0 {
			return path[j+1:]
		}
	}
	return path
}

func captureStack() []uintptr {
	var pcs [16]uintptr
	// skip runtime.Callers, captureStack and the constructor
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// New creates an AppError. The message defaults to the one registered for code.
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:      code,
		Message:   messages[code],
		Timestamp: time.Now(),
		stack:     captureStack(),
	}
	for _, opt := range opts {
		opt(err)
	}
	if err.Message == "" {
		err.Message = string(code)
	}
	return err
}

// Option customizes an AppError.
type Option func(*AppError)

func WithMessage(message string) Option {
	return func(e *AppError) {
		e.Message = message
	}
}

func WithContext(context string) Option {
	return func(e *AppError) {
		e.Context = context
	}
}

func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// Unavailable reports data the caller could not obtain. Callers treat it as a skip.
func Unavailable(context string, cause error) *AppError {
	e := New(CodeDataUnavailable, WithContext(context), WithCause(cause))
	e.stack = captureStack()
	return e
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code Code) bool {
	return errors.Is(err, &AppError{Code: code})
}

// CodeOf returns the outermost AppError code in err's chain, or CodeUnknownError.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}
