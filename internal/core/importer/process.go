package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

// DefaultExtractTimeout bounds a single out-of-process extraction
const DefaultExtractTimeout = 2 * time.Minute

// ProcessExtractor runs extraction in a child process so a pathological
// file cannot stall or exhaust the importing process. The child receives
// the content on stdin and answers in the chatexport result format.
type ProcessExtractor struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// NewSelfExtractor returns a ProcessExtractor that re-runs the current
// binary's extract command
func NewSelfExtractor(timeout time.Duration) (*ProcessExtractor, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return &ProcessExtractor{
		Command: exe,
		Args:    []string{"extract"},
		Timeout: timeout,
	}, nil
}

// Extract implements chatexport.Extractor
func (p *ProcessExtractor) Extract(content []byte, filename string, size int64) ([]chatexport.Conversation, error) {
	return p.ExtractContext(context.Background(), content, filename, size)
}

// ExtractContext runs one extraction, killing the child if ctx ends first
func (p *ProcessExtractor) ExtractContext(ctx context.Context, content []byte, filename string, _ int64) ([]chatexport.Conversation, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, p.Args...), "--name", filename, "-")
	cmd := exec.CommandContext(ctx, p.Command, args...)
	cmd.Stdin = bytes.NewReader(content)
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("extraction of %s aborted: %w", filename, ctx.Err())
	}

	// The child exits non-zero after reporting a parse failure on stdout
	if stdout.Len() > 0 {
		conversations, err := chatexport.DecodeResult(stdout.Bytes())
		var pe *chatexport.ParseError
		if err == nil || errors.As(err, &pe) {
			return conversations, err
		}
		if runErr == nil {
			return nil, err
		}
	}

	if runErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("extraction process failed: %w: %s", runErr, detail)
		}
		return nil, fmt.Errorf("extraction process failed: %w", runErr)
	}
	return nil, fmt.Errorf("extraction process produced no output")
}
