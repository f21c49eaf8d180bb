package ingestion

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a single source could not be turned into text.
type ErrorKind string

const (
	// FetchError covers transport failures and non-2xx responses.
	FetchError ErrorKind = "fetch_error"
	// ParseError covers corrupt, encrypted or otherwise unreadable documents.
	ParseError ErrorKind = "parse_error"
	// UnresolvableURL means no scheme combination produced a usable URL.
	UnresolvableURL ErrorKind = "unresolvable_url"
	// Unsupported means the source kind has no extractor.
	Unsupported ErrorKind = "unsupported"
)

// SourceError is the only error type returned by extractors.
type SourceError struct {
	Kind   ErrorKind
	Source string
	// Status is the HTTP status for FetchError responses, zero otherwise.
	Status int
	Err    error
}

func (e *SourceError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s: %s returned status %d", e.Kind, e.Source, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Source, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Source)
	}
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// KindOf reports the ErrorKind carried by err, or "" when err is not a
// SourceError.
func KindOf(err error) ErrorKind {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Kind
	}
	return ""
}

func sourceErr(kind ErrorKind, source string, err error) *SourceError {
	return &SourceError{Kind: kind, Source: source, Err: err}
}

// Extraction is the outcome of one extraction attempt. Exactly one of Text or
// Err is meaningful; a failed Extraction is rendered as an inline note by the
// corpus assembler instead of aborting the submission.
type Extraction struct {
	Label  string
	Source Attachment
	Text   string
	Err    error
}

func (e Extraction) Failed() bool {
	return e.Err != nil
}

// Kind is the failure classification, empty on success.
func (e Extraction) Kind() ErrorKind {
	if e.Err == nil {
		return ""
	}
	if kind := KindOf(e.Err); kind != "" {
		return kind
	}
	return FetchError
}

// Describe renders the kind for inline notes, e.g. "fetch error".
func (k ErrorKind) Describe() string {
	switch k {
	case FetchError:
		return "fetch error"
	case ParseError:
		return "parse error"
	case UnresolvableURL:
		return "unresolvable url"
	case Unsupported:
		return "unsupported source"
	default:
		return "error"
	}
}

// Reason is the human readable cause of a failed extraction, without the
// kind or source prefix carried by SourceError.Error.
func (e Extraction) Reason() string {
	if e.Err == nil {
		return ""
	}
	var srcErr *SourceError
	if errors.As(e.Err, &srcErr) {
		switch {
		case srcErr.Status != 0:
			return fmt.Sprintf("status %d", srcErr.Status)
		case srcErr.Err != nil:
			return srcErr.Err.Error()
		default:
			return srcErr.Kind.Describe()
		}
	}
	return e.Err.Error()
}
