// Package dedupe detects conversations that were already archived, using a
// cheap fingerprint of their opening messages.
package dedupe

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/neilberkman/chatarchive/pkg/chatexport"
)

// fingerprintMessages is how many leading messages make up a fingerprint
const fingerprintMessages = 5

// Hash returns the content hash of one message: the 31-multiplier string
// hash over UTF-16 code units of the trimmed, lowercased content, with
// 32-bit wraparound, rendered in base 36. Archives written by earlier
// tools carry the same values, so the arithmetic must not change.
func Hash(content string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(strings.ToLower(strings.TrimSpace(content)))) {
		h = h*31 + int32(c)
	}
	return strconv.FormatInt(int64(h), 36)
}

// Fingerprint joins the hashes of the first five messages (or all of them
// when there are fewer) with "|". An empty conversation has an empty
// fingerprint.
func Fingerprint(conv *chatexport.Conversation) string {
	n := min(len(conv.Messages), fingerprintMessages)
	hashes := make([]string, n)
	for i := range n {
		hashes[i] = Hash(conv.Messages[i].Content)
	}
	return strings.Join(hashes, "|")
}

// IsDuplicate reports whether conv has the same fingerprint as any
// conversation in existing. Empty conversations never match, on either side.
func IsDuplicate(conv *chatexport.Conversation, existing []chatexport.Conversation) bool {
	if len(conv.Messages) == 0 {
		return false
	}
	fp := Fingerprint(conv)
	for i := range existing {
		if len(existing[i].Messages) == 0 {
			continue
		}
		if Fingerprint(&existing[i]) == fp {
			return true
		}
	}
	return false
}

// Index answers the same question as IsDuplicate for many candidates
// against one archive snapshot without rescanning it each time
type Index struct {
	seen map[string]struct{}
}

// NewIndex builds an index over an archive snapshot
func NewIndex(existing []chatexport.Conversation) *Index {
	idx := &Index{seen: make(map[string]struct{}, len(existing))}
	for i := range existing {
		idx.Add(&existing[i])
	}
	return idx
}

// Add records an archived conversation. Empty conversations are ignored.
func (idx *Index) Add(conv *chatexport.Conversation) {
	if len(conv.Messages) == 0 {
		return
	}
	idx.seen[Fingerprint(conv)] = struct{}{}
}

// Contains reports whether conv duplicates an indexed conversation
func (idx *Index) Contains(conv *chatexport.Conversation) bool {
	if len(conv.Messages) == 0 {
		return false
	}
	_, ok := idx.seen[Fingerprint(conv)]
	return ok
}

// Len returns the number of distinct fingerprints indexed
func (idx *Index) Len() int {
	return len(idx.seen)
}
