package record

import (
	"encoding/json"
	"time"
)

// SourceState describes how a backing source settled during one search.
type SourceState string

const (
	SourceOK      SourceState = "ok"
	SourceCapped  SourceState = "capped"
	SourceTimeout SourceState = "timeout"
	SourceError   SourceState = "error"
)

// SourceStatus reports the contribution of one dispatched source.
type SourceStatus struct {
	Name     string        `json:"name"`
	State    SourceState   `json:"state"`
	Hits     int           `json:"hits"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Complete reports whether the source returned everything it matched.
func (s SourceStatus) Complete() bool {
	return s.State == SourceOK
}

// ResultSet is the terminal artifact of a search.
type ResultSet struct {
	ID         string         `json:"id"`
	Query      Query          `json:"query"`
	CreatedAt  time.Time      `json:"created_at"`
	Truncated  bool           `json:"truncated"`
	Correlated bool           `json:"correlated"`
	Records    []Record       `json:"records,omitzero"`
	Groups     []Group        `json:"groups,omitzero"`
	Sources    []SourceStatus `json:"sources"`
}

// MarshalJSON always emits the active view as an array, so a search with no
// matches carries "records": [] (or "groups": []) rather than omitting it.
func (rs ResultSet) MarshalJSON() ([]byte, error) {
	type plain ResultSet
	out := plain(rs)
	if out.Correlated {
		if out.Groups == nil {
			out.Groups = []Group{}
		}
	} else if out.Records == nil {
		out.Records = []Record{}
	}
	return json.Marshal(out)
}

// Len returns the number of records across both views.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	if !rs.Correlated {
		return len(rs.Records)
	}
	n := 0
	for _, g := range rs.Groups {
		n += len(g.Members)
	}
	return n
}
