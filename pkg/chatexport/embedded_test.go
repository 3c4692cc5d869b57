package chatexport

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIngest(filename string) *ingest {
	n := 0
	return &ingest{
		filename: filename,
		now:      testNowMillis,
		newID: func() string {
			n++
			return fmt.Sprintf("conv-%d", n)
		},
		log: zerolog.Nop(),
	}
}

const embeddedConversation = `{"title":"Embedded chat","create_time":1700000000,"mapping":{"a":{"message":{"author":{"role":"user"},"create_time":1700000001,"content":{"parts":["What is a goroutine?"]}}}}}`

func TestRecoverFromNextDataScript(t *testing.T) {
	conversations := extractFixture(t, "nextdata.html")
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "Embedded chat", conv.Title)
	assert.Equal(t, SourceChatGPT, conv.Source)
	assert.Equal(t, 1700000000.0, conv.CreatedAt)
	assert.Equal(t, []Role{RoleUser, RoleAssistant}, roles(conv.Messages))
	assert.Equal(t, []string{
		"What is a goroutine?",
		"A lightweight thread managed by the Go runtime.",
	}, contents(conv.Messages))
}

func TestRecoveryStepsAgreeOnSameData(t *testing.T) {
	fromScript := extractFixture(t, "nextdata.html")
	fromBareArray := extractFixture(t, "app_state.html")

	assert.Equal(t, fromScript, fromBareArray)
}

func TestRecoverFromMappingBlock(t *testing.T) {
	conversations := extractFixture(t, "shared.html")
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "Shared chat", conv.Title)
	assert.Equal(t, "share-1", conv.SourceID)
	assert.Equal(t, SourceChatGPT, conv.Source)
	assert.Equal(t, []string{"Explain defer", "defer runs a call when the function returns."}, contents(conv.Messages))
}

func TestRecoverFromPageProps(t *testing.T) {
	raw := `<script>self.__data = {"pageProps": {"conversations": [` + embeddedConversation + `]}, "x": 1}</script>`

	conversations := newTestIngest("page.html").fromPageProps(raw)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Embedded chat", conversations[0].Title)
}

func TestRecoverFromNextDataAssignment(t *testing.T) {
	raw := `<html><script>window.__NEXT_DATA__ = {"props":{"pageProps":{"sharedConversations":[` + embeddedConversation + `]}}};</script></html>`

	conversations := newTestIngest("page.html").fromNextDataScript(raw)
	require.Len(t, conversations, 1)
	assert.Equal(t, "What is a goroutine?", conversations[0].Messages[0].Content)
}

func TestRecoverFromDataJSONAttribute(t *testing.T) {
	raw := `<html><body><div id="app" data-json="[{&quot;title&quot;:&quot;Attr chat&quot;,&quot;mapping&quot;:{&quot;n&quot;:{&quot;message&quot;:{&quot;author&quot;:{&quot;role&quot;:&quot;user&quot;},&quot;content&quot;:{&quot;parts&quot;:[&quot;hi from an attribute&quot;]}}}}}]"></div></body></html>`

	conversations, err := newTestDispatcher().Extract([]byte(raw), "attr.html", int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Attr chat", conversations[0].Title)
	assert.Equal(t, "hi from an attribute", conversations[0].Messages[0].Content)
}

func TestRecoverClaudeConversationsFromPage(t *testing.T) {
	raw := `<html><script>window.__STATE__ = {"conversations": [{"name": "Claude chat", "uuid": "u1", "created_at": "2024-03-01T10:00:00Z", "messages": [{"sender": "human", "text": "Plan a trip"}, {"sender": "assistant", "text": "Sure."}]}], "ok": true};</script></html>`

	conversations, err := newTestDispatcher().Extract([]byte(raw), "claude.html", int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "Claude chat", conv.Title)
	assert.Equal(t, SourceClaude, conv.Source)
	assert.Equal(t, "u1", conv.SourceID)
	assert.Equal(t, float64(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli()), conv.CreatedAt)
	assert.Equal(t, []Role{RoleUser, RoleAssistant}, roles(conv.Messages))
}

func TestRecoverMixedConversationsArray(t *testing.T) {
	arr := `[` + embeddedConversation + `,` +
		`{"messages": [{"sender": "human", "text": "untitled claude"}]},` +
		`{"title": "Flat chat", "messages": [{"role": "user", "content": "flat"}]}]`
	raw := `<script>var data = {"conversations": ` + arr + `};</script>`

	conversations := newTestIngest("page.html").fromConversationsArray(raw)
	require.Len(t, conversations, 3)

	assert.Equal(t, SourceChatGPT, conversations[0].Source)
	assert.Equal(t, "Embedded chat", conversations[0].Title)
	assert.Equal(t, SourceClaude, conversations[1].Source)
	assert.Equal(t, "Claude Conversation 2", conversations[1].Title)
	assert.Equal(t, SourceChatGPT, conversations[2].Source)
	assert.Equal(t, "Flat chat", conversations[2].Title)
}

func TestRecoverMappingBlockInsideUnclosedObject(t *testing.T) {
	raw := `<script>var state = {"pending": true, "chat": ` + embeddedConversation + `, "more": [1, 2`

	conversations := newTestIngest("page.html").fromMappingBlock(raw)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Embedded chat", conversations[0].Title)
}

func TestMappingBlockScanIsLinear(t *testing.T) {
	// Many braces that never close: each one used to trigger its own scan to
	// the end of the page
	raw := strings.Repeat(`{"title": "x", "mapping": `, 50000)

	start := time.Now()
	conversations := newTestIngest("page.html").fromMappingBlock(raw)
	assert.Empty(t, conversations)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClosingBrackets(t *testing.T) {
	s := `{"a": {"b": [1]}, "c": "}"} tail {`

	ends, scanned := closingBrackets(s, 0)
	assert.Equal(t, 27, scanned)
	assert.Equal(t, map[int]int{0: 27, 6: 16, 12: 15}, ends)

	ends, scanned = closingBrackets(s, 33)
	assert.Empty(t, ends)
	assert.Equal(t, len(s), scanned)
}

func TestMalformedEmbeddedDataFallsThrough(t *testing.T) {
	raw := `<html><head><title>Broken</title></head><body>
<script>var s = {"conversations": [{"title": "x", "mapping": {oops}}], "n": 1};</script>
<div><p>Is this still imported?</p></div>
<div><p>Yes, from the page structure.</p></div>
</body></html>`

	conversations, err := newTestDispatcher().Extract([]byte(raw), "broken.html", int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, SourceHTML, conversations[0].Source)
	assert.Equal(t, []string{"Is this still imported?", "Yes, from the page structure."}, contents(conversations[0].Messages))
}

func TestBalancedEnd(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "flat array", input: `[1, 2] tail`, want: `[1, 2]`, ok: true},
		{name: "nested", input: `{"a": [{"b": {}}]}, more`, want: `{"a": [{"b": {}}]}`, ok: true},
		{name: "brackets inside strings", input: `{"s": "}]{["}x`, want: `{"s": "}]{["}`, ok: true},
		{name: "escaped quote", input: `["a\"]"]!`, want: `["a\"]"]`, ok: true},
		{name: "unterminated", input: `{"a": [1, 2`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end, ok := balancedEnd(tt.input, 0)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, tt.input[:end])
			}
		})
	}
}
