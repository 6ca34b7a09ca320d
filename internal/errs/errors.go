package errs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lemos/y7converter/pkg/log"
)

type Kind int

const (
	Config Kind = iota
	Auth
	Storage
	Recognition
	Translation
	Format
	Timeout
	Canceled
	Extraction
	FileIO
	Unknown
)

// Error is the typed error returned across package boundaries.
// Packages wrap low-level failures with fmt.Errorf internally and convert
// them to an *Error once the probable cause is known.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   err,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (k Kind) String() string {
	switch k {
	case Config:
		return "Config"
	case Auth:
		return "Auth"
	case Storage:
		return "Storage"
	case Recognition:
		return "Recognition"
	case Translation:
		return "Translation"
	case Format:
		return "Format"
	case Timeout:
		return "Timeout"
	case Canceled:
		return "Canceled"
	case Extraction:
		return "Extraction"
	case FileIO:
		return "FileIO"
	default:
		return "Unknown"
	}
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// FromContext converts a finished context into a Timeout or Canceled error.
func FromContext(ctx context.Context, op string) *Error {
	cause := context.Cause(ctx)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Wrap(cause, Timeout, op+" timed out")
	}
	return Wrap(cause, Canceled, op+" was canceled")
}

// CauseKind returns the kind of the innermost *Error in err's chain, the
// probable root cause when errors of several kinds are stacked.
func CauseKind(err error) Kind {
	kind := Unknown
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		kind = e.Kind
		err = e.Cause
	}
	return kind
}

// Advice returns a remediation hint for the probable cause of err.
func Advice(err error) string {
	switch CauseKind(err) {
	case Config:
		return "check the config file and environment variables (credentials, bucket, endpoint)"
	case Auth:
		return "check the API key in the config file or DASHSCOPE_API_KEY"
	case Storage:
		return "check network connectivity, the OSS endpoint and bucket, and the access key permissions"
	case Recognition:
		return "check the recognition service status and that the uploaded audio URL is reachable"
	case Translation:
		return "check the translation API key, network connectivity, or reduce the batch size"
	case Format:
		return "make sure the input is a valid UTF-8 SRT subtitle file"
	case Timeout:
		return "the operation took too long; try again or raise the configured timeout"
	case Canceled:
		return "the operation was canceled"
	case Extraction:
		return "make sure ffmpeg is installed and the input file contains an audio stream"
	case FileIO:
		return "check that the file exists and the output directory is writable"
	default:
		return "review the detailed error message and the configuration"
	}
}

// Report logs err together with its advice and reports whether err was typed.
func Report(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		log.Error("Unknown error: %v", err)
		return false
	}
	log.Error("Error detail: %v\n advice: %s", err, Advice(err))
	return true
}
