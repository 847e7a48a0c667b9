package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ca-srg/leakscope/internal/record"
)

const (
	generatedIDLength = 16
	listSeparator     = ", "
)

// Normalize converts one raw hit into a canonical record under schema.
// It never fails: malformed values are stringified or dropped.
func Normalize(raw record.RawHit, schema SourceSchema) record.Record {
	rec := record.Record{
		Source:       schema.sourceName(),
		Score:        0,
		MatchedTerms: []string{},
		Highlights:   []string{},
		Fields:       make(map[record.Field]string),
	}

	rawKeys := make([]string, 0, len(raw))
	for k := range raw {
		rawKeys = append(rawKeys, k)
	}
	sort.Strings(rawKeys)

	// First raw key in sorted order wins when several map to the same semantic key.
	for _, k := range rawKeys {
		field, ok := schema.Fields[k]
		if !ok || !field.Known() {
			continue
		}
		if _, taken := rec.Fields[field]; taken {
			continue
		}
		if value := stringify(raw[k]); value != "" {
			rec.Fields[field] = value
		}
	}

	content := stringify(raw[schema.contentField()])
	if content != "" {
		applyContent(rec.Fields, content)
	}

	composeName(rec.Fields)

	rec.ID = stringify(raw[schema.idField()])
	if rec.ID == "" {
		rec.ID = syntheticID(raw, schema, rec.Fields, content)
	}

	rec.Exposed = record.ExposedFields(rec.Fields)
	rec.Relevance = NativeScore(raw, schema)
	return rec
}

// NormalizeBatch normalizes raws and rescales native scores to [0,1] within the batch.
func NormalizeBatch(raws []record.RawHit, schema SourceSchema) []record.Record {
	out := make([]record.Record, 0, len(raws))
	max := 0.0
	for _, raw := range raws {
		rec := Normalize(raw, schema)
		if rec.Relevance > max {
			max = rec.Relevance
		}
		out = append(out, rec)
	}
	for i := range out {
		if max > 0 {
			out[i].Relevance = out[i].Relevance / max
		} else {
			out[i].Relevance = 0
		}
	}
	return out
}

// NativeScore extracts the source's own relevance score, clamped to be non-negative.
func NativeScore(raw record.RawHit, schema SourceSchema) float64 {
	v, ok := raw[schema.scoreField()]
	if !ok {
		return 0
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// applyContent splits "identifier:secret" content on the first colon.
// Values already mapped explicitly are kept.
func applyContent(fields map[record.Field]string, content string) {
	left, right, found := strings.Cut(content, ":")
	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)

	if !found || left == "" || right == "" {
		setIfAbsent(fields, record.FieldContext, content)
		return
	}

	if strings.Contains(left, "@") {
		setIfAbsent(fields, record.FieldEmail, left)
	} else {
		setIfAbsent(fields, record.FieldUsername, left)
	}
	setIfAbsent(fields, record.FieldPassword, right)
}

func composeName(fields map[record.Field]string) {
	if _, ok := fields[record.FieldName]; ok {
		return
	}
	parts := make([]string, 0, 2)
	if first := fields[record.FieldFirstName]; first != "" {
		parts = append(parts, first)
	}
	if last := fields[record.FieldLastName]; last != "" {
		parts = append(parts, last)
	}
	if len(parts) > 0 {
		fields[record.FieldName] = strings.Join(parts, " ")
	}
}

func setIfAbsent(fields map[record.Field]string, f record.Field, value string) {
	if value == "" {
		return
	}
	if _, ok := fields[f]; ok {
		return
	}
	fields[f] = value
}

func syntheticID(raw record.RawHit, schema SourceSchema, fields map[record.Field]string, content string) string {
	h := sha256.New()
	h.Write([]byte(schema.sourceName()))

	if len(schema.IDFrom) > 0 {
		for _, k := range schema.IDFrom {
			h.Write([]byte{0})
			h.Write([]byte(k))
			h.Write([]byte{'='})
			h.Write([]byte(stringify(raw[k])))
		}
	} else {
		for _, f := range record.Fields() {
			value, ok := fields[f]
			if !ok {
				continue
			}
			h.Write([]byte{0})
			h.Write([]byte(f))
			h.Write([]byte{'='})
			h.Write([]byte(value))
		}
		h.Write([]byte{0})
		h.Write([]byte(content))
	}

	return hex.EncodeToString(h.Sum(nil))[:generatedIDLength]
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return stringify(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case json.Number:
		return val.String()
	case []string:
		return joinNonEmpty(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringify(item))
		}
		return joinNonEmpty(parts)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func joinNonEmpty(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, listSeparator)
}
