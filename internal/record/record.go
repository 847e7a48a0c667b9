package record

import "sort"

// RawHit is one document as returned by a backing source. Its shape varies per source.
type RawHit map[string]any

// Reserved RawHit keys filled in by source adapters.
const (
	RawIDKey    = "_id"
	RawScoreKey = "_score"
	RawIndexKey = "_index"
)

// Record is the canonical shape of a hit regardless of the source that produced it.
type Record struct {
	ID           string           `json:"id"`
	Source       string           `json:"source"`
	Score        float64          `json:"score"`
	Relevance    float64          `json:"relevance"`
	MatchedTerms []string         `json:"matched_terms"`
	Highlights   []string         `json:"highlights"`
	Fields       map[Field]string `json:"fields"`
	// Exposed lists the sensitive or identifying keys present, see ExposedFields.
	Exposed      []Field          `json:"exposed,omitempty"`
}

// Key is the deduplication key of the record.
func (r Record) Key() string {
	return r.Source + "/" + r.ID
}

// Get returns the value stored under f, or "".
func (r Record) Get(f Field) string {
	return r.Fields[f]
}

// Has reports whether f carries a value.
func (r Record) Has(f Field) bool {
	_, ok := r.Fields[f]
	return ok
}

// FieldKeys returns the populated keys in canonical order.
func (r Record) FieldKeys() []Field {
	keys := make([]Field, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := keys[i].Rank(), keys[j].Rank()
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Less orders records by score descending, then source and id ascending.
func Less(a, b Record) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.ID < b.ID
}

// SortRecords sorts records in place using Less.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return Less(records[i], records[j])
	})
}
