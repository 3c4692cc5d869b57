package chatexport

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// ingest carries the per-call values every extractor stamps onto its output
type ingest struct {
	filename string
	now      float64 // import time, Unix milliseconds
	newID    func() string
	log      zerolog.Logger
}

func (in *ingest) nowPtr() *float64 {
	ts := in.now
	return &ts
}

func (in *ingest) conversation(source Source, title string) Conversation {
	return Conversation{
		ID:        in.newID(),
		Title:     title,
		Messages:  []Message{},
		Source:    source,
		CreatedAt: in.now,
		Tags:      []string{},
	}
}

// shape is the recognized top-level layout of a JSON export
type shape int

const (
	shapeUnknown shape = iota
	shapeChatGPT       // array of conversations holding mapping trees
	shapeClaude        // object with a conversations array
	shapeGeneric       // single object with a messages array
)

func detectShape(doc gjson.Result) shape {
	switch {
	case doc.IsArray():
		return shapeChatGPT
	case doc.Get("conversations").IsArray():
		return shapeClaude
	case doc.Get("messages").IsArray():
		return shapeGeneric
	}
	return shapeUnknown
}

// extractStructured routes a parsed JSON document to the extractor for its
// shape. Unknown shapes yield ErrUnrecognizedFormat and no partial result.
func (in *ingest) extractStructured(doc gjson.Result) ([]Conversation, error) {
	switch detectShape(doc) {
	case shapeChatGPT:
		in.log.Debug().Msg("detected ChatGPT export")
		return in.conversationArray(doc), nil
	case shapeClaude:
		in.log.Debug().Msg("detected Claude export")
		return in.extractClaude(doc.Get("conversations")), nil
	case shapeGeneric:
		in.log.Debug().Msg("detected generic export")
		return []Conversation{in.extractGeneric(doc)}, nil
	}
	return nil, ErrUnrecognizedFormat
}

// conversationArray converts a conversations array recovered from page data.
// Elements carrying a mapping tree go through the tree extractor, Claude
// elements through the Claude extractor, and the ChatGPT page-data variant
// with a flat messages list is normalized message by message.
func (in *ingest) conversationArray(arr gjson.Result) []Conversation {
	items := arr.Array()
	conversations := make([]Conversation, 0, len(items))
	for i, item := range items {
		if isClaudeConversation(item) {
			conversations = append(conversations, in.claudeConversation(item, i))
			continue
		}
		title := fmt.Sprintf("ChatGPT Conversation %d", i+1)
		if !item.Get("mapping").IsObject() && item.Get("messages").IsArray() {
			conversations = append(conversations, in.flatChatGPTConversation(item, title))
			continue
		}
		conversations = append(conversations, in.chatGPTConversation(item, title))
	}
	return conversations
}

func (in *ingest) chatGPTConversation(item gjson.Result, defaultTitle string) Conversation {
	conv := in.conversation(SourceChatGPT, firstString(item, defaultTitle, "title"))
	conv.SourceID = firstString(item, "", "conversation_id", "id")
	if ts, ok := numericInstant(item.Get("create_time")); ok {
		conv.CreatedAt = ts
	}
	conv.Messages = mappingMessages(item.Get("mapping"))
	return conv
}

func (in *ingest) flatChatGPTConversation(item gjson.Result, defaultTitle string) Conversation {
	conv := in.conversation(SourceChatGPT, firstString(item, defaultTitle, "title"))
	conv.SourceID = firstString(item, "", "conversation_id", "id")
	if ts, ok := numericInstant(item.Get("create_time")); ok {
		conv.CreatedAt = ts
	}
	conv.Messages = flatMessages(item.Get("messages"), in.nowPtr())
	return conv
}

// mappingMessages walks a mapping of tree nodes. Node iteration order says
// nothing about conversational order, so the result is sorted by timestamp
// with missing timestamps first.
func mappingMessages(mapping gjson.Result) []Message {
	messages := []Message{}
	if !mapping.IsObject() {
		return messages
	}

	mapping.ForEach(func(_, node gjson.Result) bool {
		msg := node.Get("message")
		parts := msg.Get("content.parts")
		if !parts.IsArray() || len(parts.Array()) == 0 {
			return true
		}
		messages = append(messages, normalizeMessage(msg, nil))
		return true
	})

	sort.SliceStable(messages, func(i, j int) bool {
		return timestampOrZero(messages[i]) < timestampOrZero(messages[j])
	})
	return messages
}

func (in *ingest) extractClaude(list gjson.Result) []Conversation {
	items := list.Array()
	conversations := make([]Conversation, 0, len(items))
	for i, item := range items {
		conversations = append(conversations, in.claudeConversation(item, i))
	}
	return conversations
}

func (in *ingest) claudeConversation(item gjson.Result, index int) Conversation {
	conv := in.conversation(SourceClaude, firstString(item, fmt.Sprintf("Claude Conversation %d", index+1), "name"))
	conv.SourceID = firstString(item, "", "uuid", "id")
	if ts, ok := numericInstant(item.Get("created_at")); ok {
		conv.CreatedAt = ts
	}
	// Already in conversational order
	conv.Messages = flatMessages(item.Get("messages"), nil)
	return conv
}

// isClaudeConversation recognizes a Claude element inside a mixed page-data
// array: no mapping tree, and a name or sender-labelled messages
func isClaudeConversation(item gjson.Result) bool {
	if item.Get("mapping").IsObject() || !item.Get("messages").IsArray() {
		return false
	}
	if item.Get("name").Type == gjson.String {
		return true
	}
	claude := false
	item.Get("messages").ForEach(func(_, m gjson.Result) bool {
		claude = m.Get("sender").Exists()
		return !claude
	})
	return claude
}

func (in *ingest) extractGeneric(doc gjson.Result) Conversation {
	source := Source(firstString(doc, string(SourceGeneric), "source"))
	conv := in.conversation(source, firstString(doc, "Generic Conversation", "title"))
	conv.SourceID = firstString(doc, "", "id")
	for _, path := range []string{"createdAt", "created_at"} {
		if ts, ok := numericInstant(doc.Get(path)); ok {
			conv.CreatedAt = ts
			break
		}
	}
	conv.Messages = flatMessages(doc.Get("messages"), in.nowPtr())
	return conv
}

func flatMessages(list gjson.Result, fallback *float64) []Message {
	items := list.Array()
	messages := make([]Message, 0, len(items))
	for _, rec := range items {
		messages = append(messages, normalizeMessage(rec, fallback))
	}
	return messages
}

func timestampOrZero(m Message) float64 {
	if m.Timestamp == nil {
		return 0
	}
	return *m.Timestamp
}
