package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Risk is the coarse severity label of a correlation group.
type Risk int

const (
	RiskUnknown Risk = iota
	RiskLow
	RiskMedium
	RiskHigh
)

func (r Risk) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// Severity orders risks; higher is more severe.
func (r Risk) Severity() int { return int(r) }

// ParseRisk parses a risk label case-insensitively.
func ParseRisk(s string) (Risk, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return RiskLow, nil
	case "MEDIUM":
		return RiskMedium, nil
	case "HIGH":
		return RiskHigh, nil
	case "UNKNOWN", "":
		return RiskUnknown, nil
	default:
		return RiskUnknown, fmt.Errorf("unknown risk label %q", s)
	}
}

func (r Risk) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Risk) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRisk(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Group is a cluster of records believed to share an identity.
type Group struct {
	Members      []Record           `json:"members"`
	Risk         Risk               `json:"risk"`
	SharedFields map[Field][]string `json:"shared_fields"`
	Sources      []string           `json:"sources"`
}

// MinMemberID returns the lexicographically smallest member id.
func (g Group) MinMemberID() string {
	if len(g.Members) == 0 {
		return ""
	}
	min := g.Members[0].ID
	for _, m := range g.Members[1:] {
		if m.ID < min {
			min = m.ID
		}
	}
	return min
}
