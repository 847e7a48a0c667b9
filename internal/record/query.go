package record

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MinQueryLength is the minimum trimmed query length in characters.
const MinQueryLength = 3

// Options are the caller-controlled search options.
type Options struct {
	Correlate    bool     `json:"correlate"`
	SourceFilter []string `json:"source_filter,omitempty"`
	DeadlineMs   int      `json:"deadline_ms,omitempty"`
}

// Query is an immutable search request. Build it with NewQuery.
type Query struct {
	text      string
	terms     []string
	sources   []string
	deadline  time.Duration
	correlate bool
}

// NewQuery validates text and options and returns the query value.
func NewQuery(text string, opts Options) (Query, error) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < MinQueryLength {
		return Query{}, &InvalidQueryError{
			Reason: fmt.Sprintf("query must be at least %d characters", MinQueryLength),
		}
	}
	if opts.DeadlineMs < 0 {
		return Query{}, &InvalidQueryError{Reason: "deadline must not be negative"}
	}

	q := Query{
		text:      trimmed,
		terms:     extractTerms(trimmed),
		sources:   normalizeSourceFilter(opts.SourceFilter),
		deadline:  time.Duration(opts.DeadlineMs) * time.Millisecond,
		correlate: opts.Correlate,
	}
	return q, nil
}

// Text returns the trimmed query text.
func (q Query) Text() string { return q.text }

// Terms returns the lower-cased, de-duplicated query terms.
func (q Query) Terms() []string {
	out := make([]string, len(q.terms))
	copy(out, q.terms)
	return out
}

// SourceFilter returns the sorted source names the query is restricted to.
// An empty filter selects every configured source.
func (q Query) SourceFilter() []string {
	out := make([]string, len(q.sources))
	copy(out, q.sources)
	return out
}

// Selects reports whether the named source passes the filter.
func (q Query) Selects(source string) bool {
	if len(q.sources) == 0 {
		return true
	}
	i := sort.SearchStrings(q.sources, source)
	return i < len(q.sources) && q.sources[i] == source
}

// Deadline returns the per-query deadline, zero when the engine default applies.
func (q Query) Deadline() time.Duration { return q.deadline }

// Correlate reports whether grouped output was requested.
func (q Query) Correlate() bool { return q.correlate }

// IsZero reports whether q was never built by NewQuery.
func (q Query) IsZero() bool { return q.text == "" }

// Options returns the options the query was built from.
func (q Query) Options() Options {
	return Options{
		Correlate:    q.correlate,
		SourceFilter: q.SourceFilter(),
		DeadlineMs:   int(q.deadline / time.Millisecond),
	}
}

type queryJSON struct {
	Text    string  `json:"text"`
	Options Options `json:"options"`
}

func (q Query) MarshalJSON() ([]byte, error) {
	return json.Marshal(queryJSON{Text: q.text, Options: q.Options()})
}

func (q *Query) UnmarshalJSON(data []byte) error {
	var raw queryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Text == "" {
		*q = Query{}
		return nil
	}
	parsed, err := NewQuery(raw.Text, raw.Options)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

func extractTerms(text string) []string {
	seen := make(map[string]struct{})
	terms := make([]string, 0, 4)
	add := func(term string) {
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	for _, field := range strings.Fields(text) {
		add(strings.ToLower(field))
	}

	// Phone-like queries also match their digit-only form.
	if digits := PhoneDigits(text); digits != "" {
		add(digits)
	}

	return terms
}

// PhoneDigits returns the digits of s when s looks like a phone number
// (7 to 15 digits once separators are removed), otherwise "".
func PhoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.' || unicode.IsSpace(r):
		default:
			return ""
		}
	}
	digits := b.String()
	if len(digits) < 7 || len(digits) > 15 {
		return ""
	}
	return digits
}

func normalizeSourceFilter(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
