package chatexport

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	blockSelector = "div, article, section"

	minBlockText     = 2
	maxMessageText   = 50000
	minParagraphText = 10
	minChunkText     = 10
)

var (
	userLabelRe      = regexp.MustCompile(`(?i)^(you|user|human|me):`)
	assistantLabelRe = regexp.MustCompile(`(?i)^(assistant|ai|bot|chatgpt|claude):`)
	speakerLabelRe   = regexp.MustCompile(`(?i)^(you|user|human|me|assistant|ai|bot|chatgpt|claude):\s*`)
	userAltRe        = regexp.MustCompile(`(?i)\b(user|you)\b`)
	assistantAltRe   = regexp.MustCompile(`(?i)\b(assistant|ai|bot)\b`)
	pronounCueRe     = regexp.MustCompile(`(?i)\b(you|user|human|me)\b`)
	blankLineRe      = regexp.MustCompile(`\r?\n[ \t]*\r?\n\s*`)
	htmlExtRe        = regexp.MustCompile(`(?i)\.html?$`)
)

// heuristicTier reconstructs messages from the document structure. Tiers
// run in order and the first that yields anything wins.
type heuristicTier struct {
	name string
	run  func(doc *goquery.Document) []Message
}

var heuristicTiers = []heuristicTier{
	{name: "labeled blocks", run: labeledBlockMessages},
	{name: "paragraphs", run: paragraphMessages},
	{name: "plain text", run: plainTextMessages},
}

// extractHTML recovers embedded export data when present and otherwise
// rebuilds a single conversation from the document structure
func (in *ingest) extractHTML(raw string) ([]Conversation, error) {
	if conversations, ok := in.recoverEmbedded(raw); ok {
		return conversations, nil
	}
	in.log.Debug().Msg("no embedded data, falling back to document structure")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Kind: ErrMalformedInput, Err: err}
	}

	// Read before the plain-text tier strips scripts and styles
	title := htmlTitle(doc, in.filename)

	var messages []Message
	for _, tier := range heuristicTiers {
		messages = tier.run(doc)
		if len(messages) > 0 {
			in.log.Debug().Str("tier", tier.name).Int("messages", len(messages)).Msg("extracted messages from HTML")
			break
		}
	}
	if len(messages) == 0 {
		return nil, ErrNoExtractableContent
	}

	// Document structure never carries reliable per-message times
	for i := range messages {
		messages[i].Timestamp = in.nowPtr()
	}

	conv := in.conversation(SourceHTML, title)
	conv.Messages = messages
	return []Conversation{conv}, nil
}

func htmlTitle(doc *goquery.Document, filename string) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if name := htmlExtRe.ReplaceAllString(filepath.Base(filename), ""); name != "" && name != "." {
		return name
	}
	return "HTML Import"
}

// labeledBlockMessages classifies block elements by speaker label or role
// marker. Unlabeled blocks made only of paragraphs alternate user/assistant.
func labeledBlockMessages(doc *goquery.Document) []Message {
	var messages []Message
	accepted := make(map[*html.Node]bool)
	unlabeled := 0

	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		text, ok := blockText(s)
		if !ok || insideAccepted(s, accepted) {
			return
		}

		if role, marked := markedRole(s, text); marked {
			// Wrappers around several labeled turns are skipped in favor of the turns
			if hasMarkedBlock(s) {
				return
			}
			accepted[s.Nodes[0]] = true
			messages = append(messages, Message{Role: role, Content: stripSpeakerLabel(text)})
			return
		}

		if s.Find("p").Length() > 0 && s.Find(blockSelector).Length() == 0 {
			role := RoleUser
			if unlabeled%2 == 1 {
				role = RoleAssistant
			}
			unlabeled++
			accepted[s.Nodes[0]] = true
			messages = append(messages, Message{Role: role, Content: text})
		}
	})

	return messages
}

func blockText(s *goquery.Selection) (string, bool) {
	text := strings.TrimSpace(s.Text())
	n := utf8.RuneCountInString(text)
	return text, n >= minBlockText && n <= maxMessageText
}

func insideAccepted(s *goquery.Selection, accepted map[*html.Node]bool) bool {
	if len(accepted) == 0 {
		return false
	}
	for p := s.Nodes[0].Parent; p != nil; p = p.Parent {
		if accepted[p] {
			return true
		}
	}
	return false
}

func hasMarkedBlock(s *goquery.Selection) bool {
	found := false
	s.Find(blockSelector).EachWithBreak(func(_ int, nested *goquery.Selection) bool {
		text, ok := blockText(nested)
		if ok {
			_, found = markedRole(nested, text)
		}
		return !found
	})
	return found
}

// markedRole resolves a role from a leading speaker label, a role class, a
// role attribute, or an avatar image's alt text
func markedRole(s *goquery.Selection, text string) (Role, bool) {
	switch {
	case userLabelRe.MatchString(text):
		return RoleUser, true
	case assistantLabelRe.MatchString(text):
		return RoleAssistant, true
	case s.HasClass("user"), s.HasClass("human"):
		return RoleUser, true
	case s.HasClass("assistant"), s.HasClass("ai"), s.HasClass("bot"):
		return RoleAssistant, true
	}

	if author, ok := s.Attr("data-message-author-role"); ok {
		switch strings.ToLower(strings.TrimSpace(author)) {
		case "user":
			return RoleUser, true
		case "assistant":
			return RoleAssistant, true
		}
	}

	var alts []string
	s.Find("img[alt]").Each(func(_ int, img *goquery.Selection) {
		alt, _ := img.Attr("alt")
		alts = append(alts, alt)
	})
	for _, alt := range alts {
		if userAltRe.MatchString(alt) {
			return RoleUser, true
		}
	}
	for _, alt := range alts {
		if assistantAltRe.MatchString(alt) {
			return RoleAssistant, true
		}
	}

	return "", false
}

func stripSpeakerLabel(text string) string {
	return speakerLabelRe.ReplaceAllString(text, "")
}

// paragraphMessages treats each substantial paragraph as a turn
func paragraphMessages(doc *goquery.Document) []Message {
	var messages []Message
	doc.Find("p").Each(func(i int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		n := utf8.RuneCountInString(text)
		if n <= minParagraphText || n >= maxMessageText {
			return
		}

		role := RoleAssistant
		if pronounCueRe.MatchString(p.Parent().Text()) || i%2 == 0 {
			role = RoleUser
		}
		messages = append(messages, Message{Role: role, Content: text})
	})
	return messages
}

// plainTextMessages splits the visible text on blank lines
func plainTextMessages(doc *goquery.Document) []Message {
	doc.Find("script, style, noscript, template").Remove()

	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		return nil
	}

	var messages []Message
	for i, chunk := range blankLineRe.Split(text, -1) {
		chunk = strings.TrimSpace(chunk)
		if utf8.RuneCountInString(chunk) <= minChunkText {
			continue
		}
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		messages = append(messages, Message{Role: role, Content: chunk})
	}
	return messages
}
