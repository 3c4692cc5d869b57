// Package tagging classifies conversations into language and topic tags
// using declarative keyword rules.
package tagging

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

// HasCodeTag marks conversations containing fenced or inline code
const HasCodeTag = "has-code"

var codeRe = regexp.MustCompile("```[\\s\\S]*?```|`[^`]+`")

// Rule attaches Tag when Pattern matches the conversation text
type Rule struct {
	Tag     string
	Pattern *regexp.Regexp
}

// Rules holds the rule tables applied by a Tagger
type Rules struct {
	Language []Rule
	Topic    []Rule
}

// DefaultRules returns the built-in language and topic tables
func DefaultRules() Rules {
	return Rules{
		Language: compileRules([][2]string{
			{"javascript", `javascript|js|node|npm|react|vue|angular`},
			{"python", `python|pip|django|flask|pandas|numpy`},
			{"java", `java|spring|maven|gradle`},
			{"csharp", `c#|csharp|\.net|asp\.net`},
			{"sql", `sql|database|query|select|insert|update`},
			{"html-css", `html|css|scss|sass|tailwind`},
			{"devops", `docker|kubernetes|k8s|ci/cd|jenkins|aws|azure`},
			{"ai-ml", `machine learning|ml|ai|neural|tensorflow|pytorch`},
		}),
		Topic: compileRules([][2]string{
			{"debugging", `debug|error|bug|fix|issue|problem`},
			{"tutorial", `how to|tutorial|guide|learn|example`},
			{"code-review", `review|feedback|improve|refactor|optimize`},
			{"architecture", `architecture|design|pattern|structure|system`},
			{"api", `api|endpoint|rest|graphql|webhook`},
		}),
	}
}

// compileRules builds whole-word, case-insensitive rules from keyword
// alternations. Only used for the built-in tables, so a bad pattern panics.
func compileRules(table [][2]string) []Rule {
	rules := make([]Rule, 0, len(table))
	for _, entry := range table {
		rules = append(rules, Rule{
			Tag:     entry[0],
			Pattern: regexp.MustCompile(`(?i)\b(` + entry[1] + `)\b`),
		})
	}
	return rules
}

// Extend adds user-defined rules, given as tag to regular expression. Rules
// for a tag that already exists replace the built-in pattern.
func (r Rules) Extend(language, topic map[string]string) (Rules, error) {
	var err error
	if r.Language, err = extendRules(r.Language, language); err != nil {
		return r, fmt.Errorf("failed to compile language rule: %w", err)
	}
	if r.Topic, err = extendRules(r.Topic, topic); err != nil {
		return r, fmt.Errorf("failed to compile topic rule: %w", err)
	}
	return r, nil
}

func extendRules(base []Rule, extra map[string]string) ([]Rule, error) {
	out := slices.Clone(base)

	// Map order is random; keep the table deterministic
	tags := make([]string, 0, len(extra))
	for tag := range extra {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		re, err := regexp.Compile(`(?i)` + extra[tag])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		rule := Rule{Tag: tag, Pattern: re}
		if i := slices.IndexFunc(out, func(r Rule) bool { return r.Tag == tag }); i >= 0 {
			out[i] = rule
		} else {
			out = append(out, rule)
		}
	}
	return out, nil
}

// Tagger applies rule tables to conversations
type Tagger struct {
	rules Rules
}

// New creates a Tagger for the given rule tables
func New(rules Rules) *Tagger {
	return &Tagger{rules: rules}
}

// Tags returns the sorted tag set for a body of text
func (t *Tagger) Tags(text string) []string {
	set := make(map[string]bool)
	for _, table := range [][]Rule{t.rules.Language, t.rules.Topic} {
		for _, rule := range table {
			if rule.Pattern.MatchString(text) {
				set[rule.Tag] = true
			}
		}
	}
	if codeRe.MatchString(text) {
		set[HasCodeTag] = true
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Tag replaces conv.Tags with the tags derived from its message text
func (t *Tagger) Tag(conv *chatexport.Conversation) {
	conv.Tags = t.Tags(strings.ToLower(conv.Text()))
}

// codeLanguageTags are tags counted as programming languages in analytics
var codeLanguageTags = []string{
	"javascript", "python", "java", "csharp", "sql", "html-css",
	"typescript", "go", "rust", "cpp", "php",
}

// IsLanguageTag reports whether tag names a programming language
func IsLanguageTag(tag string) bool {
	return slices.Contains(codeLanguageTags, tag)
}
