package correlate

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ca-srg/leakscope/internal/record"
)

const minPhoneDigits = 7

// identityFields are the keys that can link two records, in the order they are checked.
var identityFields = []record.Field{
	record.FieldEmail,
	record.FieldPhone,
	record.FieldUsername,
	record.FieldName,
}

var nameFolder = cases.Fold()

// identityValue returns the normalized identity value of rec under f, or "".
func identityValue(rec record.Record, f record.Field) string {
	raw := rec.Get(f)
	if raw == "" {
		return ""
	}
	switch f {
	case record.FieldEmail, record.FieldUsername:
		return strings.ToLower(strings.TrimSpace(raw))
	case record.FieldPhone:
		return normalizePhone(raw)
	case record.FieldName:
		return normalizeName(raw)
	default:
		return ""
	}
}

func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < minPhoneDigits {
		return ""
	}
	return b.String()
}

// normalizeName case-folds, strips diacritics and collapses whitespace.
// Single-token names are too ambiguous to link on and yield "".
func normalizeName(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, raw)
	if err != nil {
		stripped = raw
	}
	tokens := strings.Fields(nameFolder.String(stripped))
	if len(tokens) < 2 {
		return ""
	}
	return strings.Join(tokens, " ")
}
