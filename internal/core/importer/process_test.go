package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

// TestHelperProcess stands in for the extract command when run as a child
// of the tests below
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 4 || args[1] != "--name" {
		fmt.Fprintln(os.Stderr, "usage: -- --name <filename> -")
		os.Exit(2)
	}
	name := args[2]

	switch os.Getenv("HELPER_MODE") {
	case "crash":
		fmt.Fprintln(os.Stderr, "boom")
		os.Exit(3)
	case "hang":
		time.Sleep(time.Minute)
	}

	content, _ := io.ReadAll(os.Stdin)
	conversations, err := chatexport.NewDispatcher().Extract(content, name, int64(len(content)))
	_ = chatexport.EncodeResult(os.Stdout, conversations, err)
	if err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func helperExtractor(mode string, timeout time.Duration) *ProcessExtractor {
	return &ProcessExtractor{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--"},
		Env:     []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode},
		Timeout: timeout,
	}
}

func TestProcessExtractor(t *testing.T) {
	p := helperExtractor("", 30*time.Second)

	content := []byte(`{"messages": [{"role": "user", "content": "hi there"}, {"role": "assistant", "content": "hello"}]}`)
	conversations, err := p.Extract(content, "chat.json", int64(len(content)))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(conversations) != 1 {
		t.Fatalf("Expected 1 conversation, got %d", len(conversations))
	}
	if len(conversations[0].Messages) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(conversations[0].Messages))
	}
}

func TestProcessExtractor_ParseError(t *testing.T) {
	p := helperExtractor("", 30*time.Second)

	_, err := p.Extract([]byte(`{"broken": `), "broken.json", 11)
	var pe *chatexport.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Extract() error = %v, want *ParseError", err)
	}
	if pe.Filename != "broken.json" {
		t.Errorf("Filename = %q, want broken.json", pe.Filename)
	}
	if !errors.Is(err, chatexport.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
}

func TestProcessExtractor_Crash(t *testing.T) {
	p := helperExtractor("crash", 30*time.Second)

	_, err := p.Extract([]byte(`[]`), "x.json", 2)
	if err == nil {
		t.Fatal("Expected error from crashing extractor")
	}
	if IsParseError(err) {
		t.Errorf("crash reported as parse error: %v", err)
	}
}

func TestProcessExtractor_Timeout(t *testing.T) {
	p := helperExtractor("hang", 200*time.Millisecond)

	start := time.Now()
	_, err := p.ExtractContext(context.Background(), []byte(`[]`), "x.json", 2)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}
