package tagging

import (
	"slices"
	"testing"

	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

func conversation(contents ...string) *chatexport.Conversation {
	conv := &chatexport.Conversation{ID: "c", Title: "t", Source: chatexport.SourceGeneric}
	for _, c := range contents {
		conv.Messages = append(conv.Messages, chatexport.Message{Role: chatexport.RoleUser, Content: c})
	}
	return conv
}

func TestTag(t *testing.T) {
	tagger := New(DefaultRules())

	tests := []struct {
		name     string
		messages []string
		want     []string
	}{
		{
			name:     "language and topic",
			messages: []string{"My Python script throws an error", "Try pip install"},
			want:     []string{"debugging", "python"},
		},
		{
			name:     "whole words only",
			messages: []string{"javascriptish pythonic"},
			want:     []string{},
		},
		{
			name:     "fenced code",
			messages: []string{"```\nfmt.Println()\n```"},
			want:     []string{"has-code"},
		},
		{
			name:     "inline code with docker",
			messages: []string{"Run `docker ps` to list containers"},
			want:     []string{"devops", "has-code"},
		},
		{
			name:     "case insensitive across messages",
			messages: []string{"REACT hooks", "a GraphQL endpoint"},
			want:     []string{"api", "javascript"},
		},
		{
			name:     "multi-word keyword",
			messages: []string{"Explain how to train a model with machine learning"},
			want:     []string{"ai-ml", "tutorial"},
		},
		{
			name:     "empty conversation",
			messages: nil,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := conversation(tt.messages...)
			tagger.Tag(conv)
			if !slices.Equal(conv.Tags, tt.want) {
				t.Errorf("Tags = %v, want %v", conv.Tags, tt.want)
			}
		})
	}
}

func TestTagIsIdempotent(t *testing.T) {
	tagger := New(DefaultRules())
	conv := conversation("Refactor this SQL query", "Use an index; see `EXPLAIN`")

	tagger.Tag(conv)
	first := slices.Clone(conv.Tags)
	tagger.Tag(conv)

	if !slices.Equal(first, conv.Tags) {
		t.Errorf("second run changed tags: %v then %v", first, conv.Tags)
	}
	if len(first) == 0 {
		t.Fatal("expected some tags")
	}
}

func TestTagReplacesPriorTags(t *testing.T) {
	conv := conversation("nothing to see")
	conv.Tags = []string{"stale"}

	New(DefaultRules()).Tag(conv)
	if len(conv.Tags) != 0 {
		t.Errorf("Tags = %v, want none", conv.Tags)
	}
}

func TestExtendRules(t *testing.T) {
	rules, err := DefaultRules().Extend(
		map[string]string{"go": `\b(golang|goroutine)\b`},
		map[string]string{"api": `\bopenapi\b`},
	)
	if err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	tagger := New(rules)

	got := tagger.Tags("a goroutine leak in our openapi server")
	want := []string{"api", "go"}
	if !slices.Equal(got, want) {
		t.Errorf("Tags = %v, want %v", got, want)
	}

	// The replaced api rule no longer fires on the built-in keywords
	if got := tagger.Tags("a webhook"); slices.Contains(got, "api") {
		t.Errorf("replaced rule still matched: %v", got)
	}

	if _, err := DefaultRules().Extend(map[string]string{"bad": `(`}, nil); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestIsLanguageTag(t *testing.T) {
	if !IsLanguageTag("python") || !IsLanguageTag("go") {
		t.Error("expected python and go to be language tags")
	}
	if IsLanguageTag("debugging") || IsLanguageTag("devops") {
		t.Error("topic tags are not languages")
	}
}
