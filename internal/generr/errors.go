// Package generr defines the error kinds surfaced by the generation pipeline.
//
// Every failure that leaves the pipeline is an *Error tagged with one of the
// sentinel kinds below. Callers branch with errors.Is against the sentinel and
// never inspect messages.
package generr

import (
	"errors"
	"fmt"
)

var (
	ErrUninitializedModel = errors.New("uninitialized model")
	ErrEncoding           = errors.New("encoding error")
	ErrDecoding           = errors.New("decoding error")
	ErrLoadModel          = errors.New("error loading model")
	ErrUnsupportedDType   = errors.New("unsupported dtype")
	ErrDownload           = errors.New("download error")
	ErrInvalidConfig      = errors.New("invalid config")
)

// Error is a tagged pipeline error. Kind is one of the package sentinels.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Kind.Error()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
}

// Unwrap exposes both the kind and the cause, so errors.Is matches either.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind without a cause.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. A nil err yields nil. An err that already carries
// a kind keeps it, so the innermost classification wins.
func Wrap(kind error, err error, msg string) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		if msg == "" {
			return err
		}
		return &Error{Kind: ge.Kind, Msg: msg, Err: err}
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the sentinel kind carried by err, or nil when err is not a
// pipeline error.
func KindOf(err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return nil
}

// Name returns a stable identifier for the kind of err, used in logs and API
// error payloads.
func Name(err error) string {
	switch KindOf(err) {
	case ErrUninitializedModel:
		return "UninitializedModelError"
	case ErrEncoding:
		return "EncodingError"
	case ErrDecoding:
		return "DecodingError"
	case ErrLoadModel:
		return "LoadModelError"
	case ErrUnsupportedDType:
		return "UnsupportedDTypeError"
	case ErrDownload:
		return "DownloadError"
	case ErrInvalidConfig:
		return "InvalidConfigError"
	default:
		return "UnexpectedError"
	}
}
