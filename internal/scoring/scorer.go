package scoring

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ca-srg/leakscope/internal/record"
)

const (
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"
	Ellipsis  = "…"

	DefaultHighlightWidth = 150
	DefaultMaxHighlights  = 5
)

// highValueFields earn the field bonus when any query term matches them.
var highValueFields = map[record.Field]bool{
	record.FieldEmail:     true,
	record.FieldUsername:  true,
	record.FieldPhone:     true,
	record.FieldName:      true,
	record.FieldFirstName: true,
	record.FieldLastName:  true,
}

// Weights controls the contribution of each score component.
type Weights struct {
	Coverage   float64
	FieldBonus float64
	Native     float64
}

// DefaultWeights mirrors the configuration defaults.
func DefaultWeights() Weights {
	return Weights{Coverage: 0.7, FieldBonus: 0.1, Native: 0.3}
}

// Scorer computes relevance scores and highlight excerpts. It holds no mutable state.
type Scorer struct {
	weights        Weights
	highlightWidth int
	maxHighlights  int
}

// NewScorer returns a Scorer. Negative weights are clamped to zero and
// non-positive highlight bounds fall back to the defaults.
func NewScorer(w Weights, highlightWidth, maxHighlights int) *Scorer {
	if w.Coverage < 0 {
		w.Coverage = 0
	}
	if w.FieldBonus < 0 {
		w.FieldBonus = 0
	}
	if w.Native < 0 {
		w.Native = 0
	}
	if highlightWidth <= 0 {
		highlightWidth = DefaultHighlightWidth
	}
	if maxHighlights <= 0 {
		maxHighlights = DefaultMaxHighlights
	}
	return &Scorer{weights: w, highlightWidth: highlightWidth, maxHighlights: maxHighlights}
}

// Score returns the record's score for q and the sorted set of matched terms.
func (s *Scorer) Score(rec record.Record, q record.Query) (float64, []string) {
	terms := q.Terms()
	if len(terms) == 0 {
		return s.weights.Native * clamp01(rec.Relevance), []string{}
	}

	keys := rec.FieldKeys()
	matched := make([]string, 0, len(terms))
	bonus := false
	for _, term := range terms {
		hit := false
		for _, f := range keys {
			if indexFold(rec.Fields[f], term) < 0 {
				continue
			}
			hit = true
			if highValueFields[f] {
				bonus = true
			}
		}
		if hit {
			matched = append(matched, term)
		}
	}
	sort.Strings(matched)

	score := s.weights.Coverage * float64(len(matched)) / float64(len(terms))
	if bonus {
		score += s.weights.FieldBonus
	}
	score += s.weights.Native * clamp01(rec.Relevance)
	return score, matched
}

// Highlights returns up to the configured number of excerpts around term matches,
// walking fields in canonical order and terms in query order.
func (s *Scorer) Highlights(rec record.Record, q record.Query) []string {
	out := []string{}
	terms := q.Terms()
	for _, f := range rec.FieldKeys() {
		value := rec.Fields[f]
		for _, term := range terms {
			if len(out) >= s.maxHighlights {
				return out
			}
			pos := indexFold(value, term)
			if pos < 0 {
				continue
			}
			out = append(out, excerpt(value, pos, utf8.RuneCountInString(term), s.highlightWidth))
		}
	}
	return out
}

// Apply returns rec with Score, MatchedTerms and Highlights filled in.
func (s *Scorer) Apply(rec record.Record, q record.Query) record.Record {
	rec.Score, rec.MatchedTerms = s.Score(rec, q)
	rec.Highlights = s.Highlights(rec, q)
	return rec
}

// excerpt cuts at most width runes of value centered on the match that starts
// at rune position pos and spans n runes, and marks the match.
func excerpt(value string, pos, n, width int) string {
	runes := []rune(value)
	if n > width {
		n = width
	}

	start := pos - (width-n)/2
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(runes) {
		end = len(runes)
		start = end - width
		if start < 0 {
			start = 0
		}
	}
	matchEnd := pos + n
	if matchEnd > end {
		matchEnd = end
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(Ellipsis)
	}
	b.WriteString(string(runes[start:pos]))
	b.WriteString(MarkOpen)
	b.WriteString(string(runes[pos:matchEnd]))
	b.WriteString(MarkClose)
	b.WriteString(string(runes[matchEnd:end]))
	if end < len(runes) {
		b.WriteString(Ellipsis)
	}
	return b.String()
}

// indexFold returns the rune index of the first case-insensitive occurrence
// of term in value, or -1.
func indexFold(value, term string) int {
	if term == "" {
		return -1
	}
	hay := []rune(value)
	needle := []rune(term)
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j, r := range needle {
			if !equalFoldRune(hay[i+j], r) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	return unicode.ToLower(a) == unicode.ToLower(b)
}

func clamp01(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
