// Package mention implements @handle parsing, autocomplete and rendering for
// message bodies. Parsing is purely syntactic: a mention renders highlighted
// whether or not the handle exists in the directory.
package mention

import (
	"regexp"
	"strings"

	"github.com/campuschat/campuschat/internal/directory"
	"github.com/campuschat/campuschat/internal/types"
)

// MaxSuggestions bounds the autocomplete candidate list.
const MaxSuggestions = 5

var mentionRe = regexp.MustCompile(`@(\w+)`)

// Span is a fragment of message text. Handle is empty for plain text and
// carries the captured handle for a mention span.
type Span struct {
	Literal string
	Handle  string
}

// IsMention reports whether the span is an @handle token.
func (s Span) IsMention() bool {
	return s.Handle != ""
}

// Parse splits text into plain and mention spans. A trailing bare "@" stays
// plain text.
func Parse(text string) []Span {
	if text == "" {
		return nil
	}

	var spans []Span
	last := 0
	for _, loc := range mentionRe.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			spans = append(spans, Span{Literal: text[last:loc[0]]})
		}
		spans = append(spans, Span{
			Literal: text[loc[0]:loc[1]],
			Handle:  text[loc[2]:loc[3]],
		})
		last = loc[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Literal: text[last:]})
	}

	return spans
}

// Render reassembles spans into the original text. Parse(Render(Parse(t)))
// yields the same spans as Parse(t).
func Render(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Literal)
	}
	return sb.String()
}

// Handles returns the mentioned handles in order of appearance.
func Handles(text string) []string {
	var handles []string
	for _, s := range Parse(text) {
		if s.IsMention() {
			handles = append(handles, s.Handle)
		}
	}
	return handles
}

// Engine resolves autocomplete queries against the directory cache.
type Engine struct {
	dir *directory.Cache
}

func NewEngine(dir *directory.Cache) *Engine {
	return &Engine{dir: dir}
}

// ActiveQuery extracts the autocomplete query from a draft: the text after
// the most recent "@" with no whitespace typed since. The second return is
// false when no query is active.
func ActiveQuery(draft string) (string, bool) {
	at := strings.LastIndex(draft, "@")
	if at == -1 {
		return "", false
	}

	q := draft[at+1:]
	if strings.ContainsAny(q, " \t\n") {
		return "", false
	}

	return q, true
}

// Autocomplete returns up to MaxSuggestions directory entries whose handle
// contains the query, case-insensitively, in directory order. No relevance
// scoring.
func (e *Engine) Autocomplete(query string) []types.UserEntry {
	q := strings.ToLower(query)

	var out []types.UserEntry
	for _, entry := range e.dir.Entries() {
		if !strings.Contains(strings.ToLower(entry.Handle), q) {
			continue
		}
		out = append(out, entry)
		if len(out) == MaxSuggestions {
			break
		}
	}

	return out
}

// Insert replaces the draft from the triggering "@" through the end with the
// selected handle plus a trailing space, deactivating the query.
func Insert(draft, handle string) string {
	at := strings.LastIndex(draft, "@")
	if at == -1 {
		return draft
	}

	return draft[:at] + "@" + handle + " "
}
