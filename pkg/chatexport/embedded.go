package chatexport

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// recoveryStep is one signature search over the raw HTML text. A step
// succeeds only when it yields at least one conversation; any malformed or
// non-matching span is skipped silently.
type recoveryStep struct {
	name string
	run  func(in *ingest, raw string) []Conversation
}

// Ordered from the most specific signature to the least specific
var recoverySteps = []recoveryStep{
	{name: "next-data script", run: (*ingest).fromNextDataScript},
	{name: "conversations array", run: (*ingest).fromConversationsArray},
	{name: "pageProps object", run: (*ingest).fromPageProps},
	{name: "title and mapping block", run: (*ingest).fromMappingBlock},
	{name: "data-json attribute", run: (*ingest).fromDataJSONAttribute},
}

var (
	nextDataScriptRe   = regexp.MustCompile(`(?is)<script[^>]*\bid\s*=\s*["']__NEXT_DATA__["'][^>]*>(.*?)</script>`)
	nextDataAssignRe   = regexp.MustCompile(`(?is)<script[^>]*>\s*window\.__NEXT_DATA__\s*=\s*(.*?)</script>`)
	conversationsKeyRe = regexp.MustCompile(`"conversations"\s*:\s*\[`)
	pagePropsKeyRe     = regexp.MustCompile(`"pageProps"\s*:\s*\{`)
	dataJSONAttrRe     = regexp.MustCompile(`data-json="([^"]*)"`)
)

// recoverEmbedded runs the recovery cascade and reports whether any step
// found conversation data
func (in *ingest) recoverEmbedded(raw string) ([]Conversation, bool) {
	for _, step := range recoverySteps {
		if conversations := step.run(in, raw); len(conversations) > 0 {
			in.log.Debug().
				Str("step", step.name).
				Int("conversations", len(conversations)).
				Msg("recovered embedded conversation data")
			return conversations, true
		}
		in.log.Debug().Str("step", step.name).Msg("no embedded data found")
	}
	return nil, false
}

func (in *ingest) fromNextDataScript(raw string) []Conversation {
	for _, re := range []*regexp.Regexp{nextDataScriptRe, nextDataAssignRe} {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		blob := strings.TrimSuffix(strings.TrimSpace(m[1]), ";")
		if !gjson.Valid(blob) {
			in.log.Debug().Msg("page data script is not valid JSON")
			continue
		}
		data := gjson.Parse(blob)
		for _, path := range []string{"props.pageProps.conversations", "props.pageProps.sharedConversations"} {
			if list := data.Get(path); list.IsArray() {
				if conversations := in.conversationArray(list); len(conversations) > 0 {
					return conversations
				}
			}
		}
	}
	return nil
}

func (in *ingest) fromConversationsArray(raw string) []Conversation {
	for _, loc := range conversationsKeyRe.FindAllStringIndex(raw, -1) {
		start := loc[1] - 1
		end, ok := balancedEnd(raw, start)
		if !ok || !followedByBoundary(raw, end) {
			continue
		}
		span := raw[start:end]
		if !gjson.Valid(span) {
			continue
		}
		if conversations := in.conversationArray(gjson.Parse(span)); len(conversations) > 0 {
			return conversations
		}
	}
	return nil
}

func (in *ingest) fromPageProps(raw string) []Conversation {
	for _, loc := range pagePropsKeyRe.FindAllStringIndex(raw, -1) {
		start := loc[1] - 1
		end, ok := balancedEnd(raw, start)
		if !ok {
			continue
		}
		span := raw[start:end]
		if !gjson.Valid(span) {
			continue
		}
		if list := gjson.Parse(span).Get("conversations"); list.IsArray() {
			if conversations := in.conversationArray(list); len(conversations) > 0 {
				return conversations
			}
		}
	}
	return nil
}

// fromMappingBlock tries every object literal that mentions both "title"
// and "mapping", in document order
func (in *ingest) fromMappingBlock(raw string) []Conversation {
	if !strings.Contains(raw, `"title"`) || !strings.Contains(raw, `"mapping"`) {
		return nil
	}

	// Brackets are matched once per outermost object; nested objects reuse that pass
	var ends map[int]int
	scanned := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' || !opensObject(raw, i) {
			continue
		}
		if i >= scanned {
			ends, scanned = closingBrackets(raw, i)
		}
		end, ok := ends[i]
		if !ok {
			continue
		}
		block := raw[i:end]
		if !strings.Contains(block, `"title"`) || !strings.Contains(block, `"mapping"`) {
			// Nested blocks are substrings and cannot match either
			i = end - 1
			continue
		}
		if !gjson.Valid(block) {
			continue
		}
		doc := gjson.Parse(block)
		if doc.Get("mapping").Exists() {
			return []Conversation{in.chatGPTConversation(doc, "ChatGPT Conversation")}
		}
	}
	return nil
}

func (in *ingest) fromDataJSONAttribute(raw string) []Conversation {
	m := dataJSONAttrRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	decoded := html.UnescapeString(m[1])
	if unescaped, err := url.PathUnescape(decoded); err == nil {
		decoded = unescaped
	}
	if !gjson.Valid(decoded) {
		return nil
	}
	if list := gjson.Parse(decoded); list.IsArray() {
		return in.conversationArray(list)
	}
	return nil
}

// balancedEnd returns the index just past the bracket that closes the one
// at start. Brackets inside JSON strings are ignored.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
			if depth < 0 {
				return 0, false
			}
		}
	}
	return 0, false
}

// closingBrackets matches brackets in a single pass from the one at start
// until it closes or the text ends. ends maps the offset of every opening
// bracket that closes to the offset just past its closer; scanned is where
// the pass stopped. Brackets inside JSON strings are ignored.
func closingBrackets(s string, start int) (ends map[int]int, scanned int) {
	ends = make(map[int]int)
	var open []int
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			open = append(open, i)
		case ']', '}':
			if len(open) == 0 {
				return ends, i + 1
			}
			ends[open[len(open)-1]] = i + 1
			open = open[:len(open)-1]
			if len(open) == 0 {
				return ends, i + 1
			}
		}
	}
	return ends, len(s)
}

// followedByBoundary reports whether the next non-space byte after end
// closes or continues the enclosing object
func followedByBoundary(s string, end int) bool {
	rest := strings.TrimLeft(s[end:], " \t\r\n")
	return strings.HasPrefix(rest, ",") || strings.HasPrefix(rest, "}")
}

// opensObject reports whether the brace at i starts a JSON object (a key or
// an empty object), which rules out CSS and script blocks cheaply
func opensObject(s string, i int) bool {
	rest := strings.TrimLeft(s[i+1:], " \t\r\n")
	return strings.HasPrefix(rest, `"`) || strings.HasPrefix(rest, "}")
}
