package chatexport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractChatGPTExport(t *testing.T) {
	conversations := extractFixture(t, "chatgpt.json")
	require.Len(t, conversations, 2)

	first := conversations[0]
	assert.Equal(t, "conv-1", first.ID)
	assert.Equal(t, "6f1c2e0a-0001", first.SourceID)
	assert.Equal(t, "Sorting in Go", first.Title)
	assert.Equal(t, SourceChatGPT, first.Source)
	assert.Equal(t, 1700000000.5, first.CreatedAt)
	assert.Empty(t, first.FolderID, "the archive files conversations under its default folder")
	assert.Empty(t, first.Tags)

	// Nodes appear out of order in the mapping; the node without a
	// timestamp sorts first and the message-less root is skipped
	require.Len(t, first.Messages, 3)
	assert.Equal(t, []Role{RoleAssistant, RoleUser, RoleAssistant}, roles(first.Messages))
	assert.Equal(t, []string{
		"",
		"How do I sort a slice in Go?",
		"Use sort.Slice.\nIt takes a less function.",
	}, contents(first.Messages))
	assert.Nil(t, first.Messages[0].Timestamp)
	assert.Equal(t, ts(1700000010), first.Messages[1].Timestamp)
	assert.Equal(t, ts(1700000020), first.Messages[2].Timestamp)

	second := conversations[1]
	assert.Equal(t, "ChatGPT Conversation 2", second.Title)
	assert.Equal(t, testNowMillis, second.CreatedAt)
	require.Len(t, second.Messages, 1, "nodes with empty parts are skipped")
	assert.Equal(t, "Second conversation question", second.Messages[0].Content)
}

func TestMappingMessagesSortedByTimestamp(t *testing.T) {
	data := []byte(`[{"mapping": {
		"late":  {"message": {"author": {"role": "assistant"}, "create_time": 30, "content": {"parts": ["third"]}}},
		"none":  {"message": {"author": {"role": "user"}, "content": {"parts": ["first"]}}},
		"early": {"message": {"author": {"role": "user"}, "create_time": 10, "content": {"parts": ["second"]}}}
	}}]`)

	conversations, err := newTestDispatcher().Extract(data, "export.json", int64(len(data)))
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, []string{"first", "second", "third"}, contents(conversations[0].Messages))
}

func TestExtractFlatChatGPTConversation(t *testing.T) {
	data := []byte(`[{"title": "Flat", "messages": [
		{"role": "user", "content": "q"},
		{"role": "assistant", "content": "a", "create_time": 5}
	]}]`)

	conversations, err := newTestDispatcher().Extract(data, "export.json", int64(len(data)))
	require.NoError(t, err)
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "Flat", conv.Title)
	assert.Equal(t, SourceChatGPT, conv.Source)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "q", Timestamp: ts(testNowMillis)},
		{Role: RoleAssistant, Content: "a", Timestamp: ts(5)},
	}, conv.Messages)
}

func TestExtractClaudeExport(t *testing.T) {
	conversations := extractFixture(t, "claude.json")
	require.Len(t, conversations, 2)

	first := conversations[0]
	assert.Equal(t, "Trip planning", first.Title)
	assert.Equal(t, "c-1", first.SourceID)
	assert.Equal(t, SourceClaude, first.Source)
	assert.Equal(t, 1709287200000.0, first.CreatedAt)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "Plan a weekend in Lisbon", Timestamp: ts(1709287200000)},
		{Role: RoleAssistant, Content: "Day one: Alfama and the castle."},
	}, first.Messages)

	second := conversations[1]
	assert.Equal(t, "Claude Conversation 2", second.Title)
	assert.Equal(t, testNowMillis, second.CreatedAt)
	assert.Equal(t, []Role{RoleUser, RoleAssistant}, roles(second.Messages))
	assert.Equal(t, []string{"Untitled question", "Answer"}, contents(second.Messages))
}

func TestExtractGenericExport(t *testing.T) {
	conversations := extractFixture(t, "generic.json")
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "Generic Conversation", conv.Title)
	assert.Equal(t, SourceGeneric, conv.Source)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "hello", Timestamp: ts(1700000000000)},
		{Role: RoleUser, Content: "second", Timestamp: ts(testNowMillis)},
		{Role: RoleAssistant, Content: "reply", Timestamp: ts(testNowMillis)},
	}, conv.Messages)
}

func TestGenericExportRoundTrip(t *testing.T) {
	original := extractFixture(t, "claude.json")[0]
	original.Source = SourceManual

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	reimported, err := newTestDispatcher().Extract(encoded, "backup.json", int64(len(encoded)))
	require.NoError(t, err)
	require.Len(t, reimported, 1)

	got := reimported[0]
	assert.Equal(t, original.Title, got.Title)
	assert.Equal(t, original.Source, got.Source)
	assert.Equal(t, original.CreatedAt, got.CreatedAt)
	assert.Equal(t, roles(original.Messages), roles(got.Messages))
	assert.Equal(t, contents(original.Messages), contents(got.Messages))
}

func TestExtractStructuredUnrecognized(t *testing.T) {
	for _, input := range []string{`{"foo": 1}`, `"just a string"`, `42`, `{"conversations": {}}`} {
		t.Run(input, func(t *testing.T) {
			conversations, err := newTestDispatcher().Extract([]byte(input), "odd.json", int64(len(input)))
			assert.Nil(t, conversations)
			require.ErrorIs(t, err, ErrUnrecognizedFormat)
		})
	}
}
