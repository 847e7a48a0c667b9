package normalize

import (
	"fmt"
	"strings"

	"github.com/ca-srg/leakscope/internal/record"
)

const (
	defaultContentField = "content"
	unknownSource       = "unknown"
)

// SourceSchema declares how one backing source's raw hits map onto the canonical record.
type SourceSchema struct {
	// Source names the index or collection that produced the hits.
	Source string
	// Fields maps raw field names to semantic keys. Raw fields not listed are dropped.
	Fields map[string]record.Field
	// IDField holds the native document id. Defaults to "_id".
	IDField string
	// ScoreField holds the native relevance score. Defaults to "_score".
	ScoreField string
	// ContentField holds combined "identifier:secret" strings. Defaults to "content".
	ContentField string
	// IDFrom lists raw fields hashed into an id when the source provides none.
	IDFrom []string
}

// Validate checks the schema for unknown semantic keys.
func (s SourceSchema) Validate() error {
	if strings.TrimSpace(s.Source) == "" {
		return fmt.Errorf("schema source name is required")
	}
	for raw, field := range s.Fields {
		if strings.TrimSpace(raw) == "" {
			return fmt.Errorf("schema %s: empty raw field name", s.Source)
		}
		if !field.Known() {
			return fmt.Errorf("schema %s: raw field %q maps to unknown key %q", s.Source, raw, field)
		}
	}
	return nil
}

func (s SourceSchema) sourceName() string {
	if name := strings.TrimSpace(s.Source); name != "" {
		return name
	}
	return unknownSource
}

func (s SourceSchema) idField() string {
	if s.IDField != "" {
		return s.IDField
	}
	return record.RawIDKey
}

func (s SourceSchema) scoreField() string {
	if s.ScoreField != "" {
		return s.ScoreField
	}
	return record.RawScoreKey
}

func (s SourceSchema) contentField() string {
	if s.ContentField != "" {
		return s.ContentField
	}
	return defaultContentField
}

// DefaultFields is the identity mapping for raw fields that already use semantic names,
// plus the aliases seen across breach dumps.
func DefaultFields() map[string]record.Field {
	m := make(map[string]record.Field)
	for _, f := range record.Fields() {
		m[string(f)] = f
	}
	aliases := map[string]record.Field{
		"full_name":   record.FieldName,
		"fullname":    record.FieldName,
		"mail":        record.FieldEmail,
		"e_mail":      record.FieldEmail,
		"login":       record.FieldUsername,
		"user":        record.FieldUsername,
		"user_name":   record.FieldUsername,
		"pass":        record.FieldPassword,
		"hash":        record.FieldPasswordHash,
		"mobile":      record.FieldPhone,
		"phone_no":    record.FieldPhone,
		"birthdate":   record.FieldDOB,
		"profile_url": record.FieldLink,
		"social_link": record.FieldLink,
		"url":         record.FieldLink,
		"ip":          record.FieldIPAddress,
		"fileName":    record.FieldFileName,
	}
	for raw, f := range aliases {
		m[raw] = f
	}
	delete(m, string(record.FieldContext))
	return m
}
