// Package chatexport turns chat exports of unknown provenance (ChatGPT and
// Claude JSON, generic JSON, saved HTML pages, Markdown transcripts) into
// canonical Conversation records.
package chatexport

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Format is the extraction path chosen for a file
type Format string

const (
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

var (
	utf8BOM          = []byte("\xef\xbb\xbf")
	markdownSniffRe  = regexp.MustCompile(`(?m)^\s*\*\*(User|You|Assistant|AI)(:\*\*|\*\*:)`)
	sniffWindowBytes = 4096
)

// DetectFormat picks the extraction path from the file extension, looking
// at the content only when the extension gives no hint
func DetectFormat(filename string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		return FormatHTML
	case ".md", ".markdown":
		return FormatMarkdown
	case ".json":
		return FormatJSON
	}

	head := bytes.TrimLeft(bytes.TrimPrefix(content, utf8BOM), " \t\r\n")
	if len(head) > sniffWindowBytes {
		head = head[:sniffWindowBytes]
	}
	switch {
	case bytes.HasPrefix(head, []byte("<")):
		return FormatHTML
	case bytes.HasPrefix(head, []byte("{")), bytes.HasPrefix(head, []byte("[")):
		return FormatJSON
	case markdownSniffRe.Match(head):
		return FormatMarkdown
	}
	return FormatJSON
}

// Extractor turns one file's raw content into conversations, or a single
// *ParseError describing why it could not
type Extractor interface {
	Extract(content []byte, filename string, size int64) ([]Conversation, error)
}

// Dispatcher is the in-process Extractor
type Dispatcher struct {
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger used for extraction diagnostics
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithClock sets the source of the import time
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithIDGenerator sets how conversation IDs are generated
func WithIDGenerator(newID func() string) Option {
	return func(d *Dispatcher) { d.newID = newID }
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: zerolog.Nop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Extract parses one uploaded file. It returns every conversation found or
// a *ParseError once every strategy applicable to the file has failed;
// partial results are never returned.
func (d *Dispatcher) Extract(content []byte, filename string, size int64) ([]Conversation, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	format := DetectFormat(filename, content)

	log := d.logger.With().
		Str("file", filename).
		Str("format", string(format)).
		Str("size", humanize.Bytes(uint64(max(size, 0)))).
		Logger()
	log.Debug().Msg("extracting conversations")

	in := &ingest{
		filename: filename,
		now:      float64(d.now().UnixMilli()),
		newID:    d.newID,
		log:      log,
	}

	var (
		conversations []Conversation
		err           error
	)
	switch format {
	case FormatHTML:
		conversations, err = in.extractHTML(string(content))
	case FormatMarkdown:
		conversations = in.extractMarkdown(string(content))
	default:
		conversations, err = in.extractJSON(content)
	}

	if err != nil {
		pe := asParseError(filename, err)
		event := log.Warn().Str("kind", pe.Kind.Error())
		if pe.Err != nil {
			event = event.AnErr("cause", pe.Err)
		}
		event.Msg("extraction failed")
		return nil, pe
	}

	log.Debug().Int("conversations", len(conversations)).Msg("extraction complete")
	return conversations, nil
}

func (in *ingest) extractJSON(content []byte) ([]Conversation, error) {
	if !gjson.ValidBytes(content) {
		var probe json.RawMessage
		cause := json.Unmarshal(content, &probe)
		return nil, &ParseError{Kind: ErrMalformedInput, Err: cause}
	}
	return in.extractStructured(gjson.ParseBytes(content))
}
