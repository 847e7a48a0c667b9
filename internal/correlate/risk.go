package correlate

import "github.com/ca-srg/leakscope/internal/record"

var highlySensitiveFields = []record.Field{
	record.FieldPassword,
	record.FieldPasswordHash,
}

var sensitiveFields = []record.Field{
	record.FieldPassword,
	record.FieldPasswordHash,
	record.FieldDOB,
	record.FieldIPAddress,
}

var lowFields = []record.Field{
	record.FieldEmail,
	record.FieldUsername,
	record.FieldPhone,
	record.FieldName,
	record.FieldFirstName,
	record.FieldLastName,
	record.FieldLocation,
	record.FieldCity,
	record.FieldCountry,
	record.FieldLink,
	record.FieldGender,
	record.FieldDevice,
}

// AssessRisk labels a set of records that belong to one identity.
//
//	HIGH    password or hash exposed in at least two sources
//	MEDIUM  any sensitive field, or present in at least three sources
//	LOW     only identity or profile fields
//	UNKNOWN nothing classifiable
func AssessRisk(members []record.Record) record.Risk {
	sources := make(map[string]struct{}, len(members))
	for _, m := range members {
		sources[m.Source] = struct{}{}
	}

	switch {
	case anyHas(members, highlySensitiveFields) && len(sources) >= 2:
		return record.RiskHigh
	case anyHas(members, sensitiveFields) || len(sources) >= 3:
		return record.RiskMedium
	case anyHas(members, lowFields):
		return record.RiskLow
	default:
		return record.RiskUnknown
	}
}

func anyHas(members []record.Record, fields []record.Field) bool {
	for _, m := range members {
		for _, f := range fields {
			if m.Has(f) {
				return true
			}
		}
	}
	return false
}
