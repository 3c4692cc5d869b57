package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cbroglie/mustache"
	"github.com/rs/zerolog"

	"github.com/neilberkman/chatarchive/internal/core/db"
	"github.com/neilberkman/chatarchive/internal/core/dedupe"
	"github.com/neilberkman/chatarchive/internal/core/tagging"
	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

// Archive is the conversation store imports are appended to
type Archive interface {
	ListConversations() ([]chatexport.Conversation, error)
	AppendConversation(conv *chatexport.Conversation) error
}

// ImportRecorder is implemented by archives that keep an import log
type ImportRecorder interface {
	RecordImport(rec db.ImportRecord) error
}

// contextExtractor is implemented by extractors that can be cancelled
type contextExtractor interface {
	ExtractContext(ctx context.Context, content []byte, filename string, size int64) ([]chatexport.Conversation, error)
}

// importableExts are the file types picked up when importing a directory
var importableExts = map[string]bool{
	".json": true, ".html": true, ".htm": true, ".md": true, ".markdown": true,
}

// Importer runs uploaded files through extraction, deduplication and
// tagging, and appends the survivors to the archive
type Importer struct {
	archive          Archive
	extractor        chatexport.Extractor
	offload          chatexport.Extractor
	offloadThreshold int64
	tagger           *tagging.Tagger
	log              zerolog.Logger
	warnings         io.Writer
}

// Option configures an Importer
type Option func(*Importer)

// WithExtractor replaces the in-process extractor
func WithExtractor(e chatexport.Extractor) Option {
	return func(i *Importer) { i.extractor = e }
}

// WithOffload routes HTML files and files larger than threshold to e
func WithOffload(e chatexport.Extractor, threshold int64) Option {
	return func(i *Importer) {
		i.offload = e
		i.offloadThreshold = threshold
	}
}

// WithTagger sets the tagger applied to new conversations
func WithTagger(t *tagging.Tagger) Option {
	return func(i *Importer) { i.tagger = t }
}

// WithLogger sets the logger for import diagnostics
func WithLogger(logger zerolog.Logger) Option {
	return func(i *Importer) { i.log = logger }
}

// WithWarnings sets where per-file warnings are printed
func WithWarnings(w io.Writer) Option {
	return func(i *Importer) { i.warnings = w }
}

// New creates a new importer
func New(archive Archive, opts ...Option) *Importer {
	i := &Importer{
		archive:  archive,
		log:      zerolog.Nop(),
		warnings: os.Stderr,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.extractor == nil {
		i.extractor = chatexport.NewDispatcher(chatexport.WithLogger(i.log))
	}
	if i.tagger == nil {
		i.tagger = tagging.New(tagging.DefaultRules())
	}
	return i
}

// FileResult is the outcome of importing one file
type FileResult struct {
	Path       string
	Size       int64
	Format     chatexport.Format
	Found      int
	Imported   []chatexport.Conversation
	Duplicates int
	Err        error
}

// Result aggregates the outcome of an import run
type Result struct {
	Files      []FileResult
	Imported   int
	Duplicates int
	Failed     int
}

func (r *Result) add(fr FileResult) {
	r.Files = append(r.Files, fr)
	r.Imported += len(fr.Imported)
	r.Duplicates += fr.Duplicates
	if fr.Err != nil {
		r.Failed++
	}
}

// Summary renders the result through a mustache template
func (r *Result) Summary(template string) (string, error) {
	fileLabel := "files"
	if len(r.Files) == 1 {
		fileLabel = "file"
	}
	return mustache.Render(template, map[string]interface{}{
		"imported":       r.Imported,
		"files":          len(r.Files),
		"file_label":     fileLabel,
		"duplicates":     r.Duplicates,
		"has_duplicates": r.Duplicates > 0,
		"failed":         r.Failed,
		"has_failed":     r.Failed > 0,
	})
}

// ImportFile reads and imports a single file
func (i *Importer) ImportFile(ctx context.Context, path string) FileResult {
	content, err := os.ReadFile(path)
	if err != nil {
		fr := FileResult{Path: path, Err: fmt.Errorf("failed to read file: %w", err)}
		i.record(fr, true)
		return fr
	}
	return i.importContent(ctx, content, path, true)
}

// ImportContent imports an upload that is already in memory. filename is
// only used for format detection and titles.
func (i *Importer) ImportContent(ctx context.Context, content []byte, filename string) FileResult {
	return i.importContent(ctx, content, filename, false)
}

func (i *Importer) importContent(ctx context.Context, content []byte, path string, onDisk bool) FileResult {
	size := int64(len(content))
	fr := FileResult{
		Path:   path,
		Size:   size,
		Format: chatexport.DetectFormat(path, content),
	}
	log := i.log.With().Str("file", path).Logger()

	extractor := i.extractor
	if i.shouldOffload(path, size) {
		log.Debug().Msg("extracting out of process")
		extractor = i.offload
	}

	conversations, err := extract(ctx, extractor, content, filepath.Base(path), size)
	if err != nil {
		fr.Err = err
		i.record(fr, onDisk)
		return fr
	}
	fr.Found = len(conversations)

	// One snapshot per file, extended as conversations are appended so
	// repeats within the same file are caught too
	existing, err := i.archive.ListConversations()
	if err != nil {
		fr.Err = fmt.Errorf("failed to load archive: %w", err)
		i.record(fr, onDisk)
		return fr
	}
	seen := dedupe.NewIndex(existing)

	for idx := range conversations {
		conv := &conversations[idx]
		if seen.Contains(conv) {
			fr.Duplicates++
			log.Debug().Str("title", conv.Title).Msg("skipping duplicate conversation")
			continue
		}

		i.tagger.Tag(conv)
		if err := i.archive.AppendConversation(conv); err != nil {
			fr.Err = fmt.Errorf("failed to append %q: %w", conv.Title, err)
			break
		}
		seen.Add(conv)
		fr.Imported = append(fr.Imported, *conv)
	}

	log.Info().
		Int("found", fr.Found).
		Int("imported", len(fr.Imported)).
		Int("duplicates", fr.Duplicates).
		Msg("imported file")
	i.record(fr, onDisk)
	return fr
}

func extract(ctx context.Context, e chatexport.Extractor, content []byte, filename string, size int64) ([]chatexport.Conversation, error) {
	if ce, ok := e.(contextExtractor); ok {
		return ce.ExtractContext(ctx, content, filename, size)
	}
	return e.Extract(content, filename, size)
}

func (i *Importer) shouldOffload(path string, size int64) bool {
	if i.offload == nil {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return size > i.offloadThreshold
}

func (i *Importer) record(fr FileResult, onDisk bool) {
	recorder, ok := i.archive.(ImportRecorder)
	if !ok {
		return
	}

	path := fr.Path
	if onDisk {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	rec := db.ImportRecord{
		FilePath:              path,
		FileSize:              fr.Size,
		Format:                string(fr.Format),
		ConversationsFound:    fr.Found,
		ConversationsImported: len(fr.Imported),
		DuplicatesSkipped:     fr.Duplicates,
		Status:                db.ImportSuccess,
	}
	if fr.Err != nil {
		rec.Error = fr.Err.Error()
		rec.Status = db.ImportFailed
		if len(fr.Imported) > 0 {
			rec.Status = db.ImportPartial
		}
	}
	if err := recorder.RecordImport(rec); err != nil {
		i.log.Warn().Err(err).Str("file", fr.Path).Msg("failed to record import")
	}
}

// ImportFiles imports files strictly in the given order. A failing file
// prints a warning and the queue moves on; cancellation stops the queue.
func (i *Importer) ImportFiles(ctx context.Context, paths []string, progress ProgressCallback) *Result {
	result := &Result{}
	if progress != nil {
		progress.Start(len(paths))
	}
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}

		fr := i.ImportFile(ctx, path)
		if fr.Err != nil {
			_, _ = fmt.Fprintf(i.warnings, "Warning: failed to import %s: %v\n", path, fr.Err)
		}
		result.add(fr)

		if progress != nil {
			progress.Update(fr)
		}
	}
	if progress != nil {
		progress.Finish(result)
	}
	return result
}

// ImportDirectory imports every export file found under dirPath
func (i *Importer) ImportDirectory(ctx context.Context, dirPath string, progress ProgressCallback) (*Result, error) {
	files, err := FindExports(dirPath)
	if err != nil {
		return nil, err
	}
	return i.ImportFiles(ctx, files, progress), nil
}

// FindExports lists importable files under dirPath in lexical order
func FindExports(dirPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && importableExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// IsParseError reports whether a file failed because its content could not
// be interpreted, as opposed to an I/O or archive failure
func IsParseError(err error) bool {
	var pe *chatexport.ParseError
	return errors.As(err, &pe)
}
