package chatexport

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnrecognizedFormat means the content matched none of the known export shapes
	ErrUnrecognizedFormat = errors.New("unrecognized export format")
	// ErrMalformedInput means the content did not parse as the format it claimed
	ErrMalformedInput = errors.New("failed to parse export file")
	// ErrNoExtractableContent means an HTML document was valid but held no messages
	ErrNoExtractableContent = errors.New("no extractable messages")
)

var parseErrorKinds = []error{ErrUnrecognizedFormat, ErrMalformedInput, ErrNoExtractableContent}

// ParseError is the single user-facing failure reported for a file.
// Error() shows only the file and the kind; the underlying parser
// diagnostic stays in Err for logging.
type ParseError struct {
	Filename string
	Kind     error
	Err      error
}

func (e *ParseError) Error() string {
	if e.Filename == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Kind)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// asParseError classifies an extractor error, attaching the filename
func asParseError(filename string, err error) *ParseError {
	var pe *ParseError
	if errors.As(err, &pe) {
		out := *pe
		out.Filename = filename
		return &out
	}
	for _, kind := range parseErrorKinds {
		if errors.Is(err, kind) {
			return &ParseError{Filename: filename, Kind: kind}
		}
	}
	return &ParseError{Filename: filename, Kind: ErrMalformedInput, Err: err}
}

// parseErrorFromMessage rebuilds a ParseError from its Error() text. Text
// that does not end in a known kind is returned as a plain error.
func parseErrorFromMessage(msg string) error {
	for _, kind := range parseErrorKinds {
		if msg == kind.Error() {
			return &ParseError{Kind: kind}
		}
		if name, ok := strings.CutSuffix(msg, ": "+kind.Error()); ok {
			return &ParseError{Filename: name, Kind: kind}
		}
	}
	return errors.New(msg)
}
