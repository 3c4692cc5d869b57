package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/progress"
)

// ProgressCallback receives import progress one file at a time
type ProgressCallback interface {
	Start(total int)
	Update(fr FileResult)
	Finish(result *Result)
}

// ProgressReporter draws a progress bar for a file import queue
type ProgressReporter struct {
	writer    io.Writer
	bar       progress.Model
	total     int
	current   int
	startTime time.Time
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(w io.Writer) *ProgressReporter {
	return &ProgressReporter{
		writer: w,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Start resets the reporter for a queue of total files
func (p *ProgressReporter) Start(total int) {
	p.total = total
	p.current = 0
	p.startTime = time.Now()
}

// Update advances the bar past one finished file
func (p *ProgressReporter) Update(fr FileResult) {
	p.current++
	if p.total == 0 {
		return
	}

	pct := float64(p.current) / float64(p.total)

	name := filepath.Base(fr.Path)
	if len(name) > 40 {
		name = name[:37] + "..."
	}

	eta := time.Duration(0)
	if elapsed := time.Since(p.startTime); p.current > 0 {
		perFile := elapsed / time.Duration(p.current)
		eta = perFile * time.Duration(p.total-p.current)
	}

	_, _ = fmt.Fprintf(p.writer, "\r%s (%d/%d) ETA: %s | %s",
		p.bar.ViewAs(pct), p.current, p.total, eta.Round(time.Second), name)
}

// Finish completes the progress display
func (p *ProgressReporter) Finish(result *Result) {
	if p.total > 0 {
		_, _ = fmt.Fprintln(p.writer)
	}
	elapsed := time.Since(p.startTime)
	_, _ = fmt.Fprintf(p.writer, "Completed: processed %d files in %s\n", len(result.Files), elapsed.Round(time.Millisecond))
}
