package chatexport

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	userMarkerRe      = regexp.MustCompile(`^\*\*(User|You)(:\*\*|\*\*:)`)
	assistantMarkerRe = regexp.MustCompile(`^\*\*(Assistant|AI)(:\*\*|\*\*:)`)
	headingRe         = regexp.MustCompile(`^#{1,6}(\s|$)`)
	markdownExtRe     = regexp.MustCompile(`(?i)\.(md|markdown)$`)
)

// extractMarkdown splits a transcript into turns at bolded speaker labels.
// A document without any label is archived as one assistant message.
func (in *ingest) extractMarkdown(content string) []Conversation {
	var (
		messages []Message
		role     Role
		active   bool
		buf      []string
	)

	flush := func() {
		if active && len(buf) > 0 {
			messages = append(messages, Message{
				Role:      role,
				Content:   strings.TrimSpace(strings.Join(buf, "\n")),
				Timestamp: in.nowPtr(),
			})
		}
	}

	start := func(r Role, marker, line string) {
		flush()
		role = r
		active = true
		buf = []string{strings.TrimSpace(strings.TrimPrefix(line, marker))}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		if marker := userMarkerRe.FindString(trimmed); marker != "" {
			start(RoleUser, marker, trimmed)
			continue
		}
		if marker := assistantMarkerRe.FindString(trimmed); marker != "" {
			start(RoleAssistant, marker, trimmed)
			continue
		}

		switch {
		case headingRe.MatchString(trimmed):
			continue
		case trimmed != "":
			// Lines before the first label have no speaker and are dropped at the next flush
			buf = append(buf, line)
		}
	}
	flush()

	if len(messages) == 0 {
		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   strings.TrimSpace(content),
			Timestamp: in.nowPtr(),
		})
	}

	title := markdownExtRe.ReplaceAllString(filepath.Base(in.filename), "")
	if title == "" || title == "." {
		title = "Markdown Conversation"
	}

	conv := in.conversation(SourceMarkdown, title)
	conv.Messages = messages
	return []Conversation{conv}
}
