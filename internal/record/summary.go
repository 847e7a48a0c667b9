package record

import (
	"strings"
	"unicode/utf8"
)

const (
	// SummaryMaxBytes caps SummaryContext output.
	SummaryMaxBytes  = 400
	summarySeparator = " | "
)

// summaryFields are the identity and profile values joined by SummaryContext.
var summaryFields = []Field{
	FieldEmail,
	FieldUsername,
	FieldPhone,
	FieldName,
	FieldLocation,
	FieldCity,
	FieldCountry,
	FieldLink,
}

// exposureFields are the sensitive or identifying keys reported by ExposedFields.
var exposureFields = []Field{
	FieldEmail,
	FieldUsername,
	FieldPhone,
	FieldPassword,
	FieldPasswordHash,
	FieldDOB,
	FieldGender,
	FieldLocation,
	FieldCity,
	FieldCountry,
	FieldIPAddress,
	FieldDevice,
	FieldLink,
}

// ExposedFields lists which exposure-relevant keys carry a value, in a fixed order.
func ExposedFields(fields map[Field]string) []Field {
	out := make([]Field, 0, len(exposureFields))
	for _, f := range exposureFields {
		if strings.TrimSpace(fields[f]) != "" {
			out = append(out, f)
		}
	}
	return out
}

// SummaryContext joins the record's identity and profile values with " | ",
// truncated to SummaryMaxBytes on a rune boundary. It is the context shown
// when neither a context field nor highlights exist.
func SummaryContext(fields map[Field]string) string {
	parts := make([]string, 0, len(summaryFields))
	for _, f := range summaryFields {
		if v := strings.TrimSpace(fields[f]); v != "" {
			parts = append(parts, v)
		}
	}
	s := strings.Join(parts, summarySeparator)
	if len(s) <= SummaryMaxBytes {
		return s
	}
	cut := SummaryMaxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
