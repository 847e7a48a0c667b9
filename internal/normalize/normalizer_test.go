package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/leakscope/internal/record"
)

func testSchema() SourceSchema {
	return SourceSchema{Source: "combolist", Fields: DefaultFields()}
}

func TestNormalizeSplitsEmailCredential(t *testing.T) {
	rec := Normalize(record.RawHit{
		"_id":     "doc-1",
		"_score":  4.2,
		"content": "user1@example.com:Secret123",
	}, testSchema())

	assert.Equal(t, "doc-1", rec.ID)
	assert.Equal(t, "combolist", rec.Source)
	assert.Equal(t, "user1@example.com", rec.Get(record.FieldEmail))
	assert.Equal(t, "Secret123", rec.Get(record.FieldPassword))
	assert.False(t, rec.Has(record.FieldContext))
}

func TestNormalizeSplitsUsernameCredential(t *testing.T) {
	rec := Normalize(record.RawHit{"_id": "1", "content": "jdoe:hunter2:extra"}, testSchema())

	assert.Equal(t, "jdoe", rec.Get(record.FieldUsername))
	assert.Equal(t, "hunter2:extra", rec.Get(record.FieldPassword))
	assert.False(t, rec.Has(record.FieldEmail))
}

func TestNormalizeKeepsUnsplittableContent(t *testing.T) {
	for _, content := range []string{"no separator here", ":onlysecret", "onlyuser:"} {
		rec := Normalize(record.RawHit{"_id": "1", "content": content}, testSchema())
		assert.Equal(t, content, rec.Get(record.FieldContext), content)
		assert.False(t, rec.Has(record.FieldPassword), content)
	}
}

func TestNormalizeMappedFieldsWinOverContent(t *testing.T) {
	rec := Normalize(record.RawHit{
		"_id":      "1",
		"email":    "real@example.com",
		"content":  "other@example.com:pw",
		"password": "explicit",
	}, testSchema())

	assert.Equal(t, "real@example.com", rec.Get(record.FieldEmail))
	assert.Equal(t, "explicit", rec.Get(record.FieldPassword))
}

func TestNormalizeDropsUnknownAndEmptyFields(t *testing.T) {
	rec := Normalize(record.RawHit{
		"_id":        "1",
		"email":      "  ",
		"username":   nil,
		"favourite":  "blue",
		"city":       " Tokyo ",
		"first_name": "Alice",
	}, testSchema())

	assert.False(t, rec.Has(record.FieldEmail))
	assert.False(t, rec.Has(record.FieldUsername))
	assert.Equal(t, "Tokyo", rec.Get(record.FieldCity))
	assert.Len(t, rec.Fields, 3)
	assert.Equal(t, "Alice", rec.Get(record.FieldName))
}

func TestNormalizeComposesName(t *testing.T) {
	rec := Normalize(record.RawHit{"_id": "1", "first_name": "Alice", "last_name": "Smith"}, testSchema())
	assert.Equal(t, "Alice Smith", rec.Get(record.FieldName))

	rec = Normalize(record.RawHit{"_id": "1", "name": "A. Smith", "first_name": "Alice"}, testSchema())
	assert.Equal(t, "A. Smith", rec.Get(record.FieldName))
}

func TestNormalizeFirstSortedRawKeyWins(t *testing.T) {
	rec := Normalize(record.RawHit{
		"_id":    "1",
		"mail":   "second@example.com",
		"e_mail": "first@example.com",
	}, testSchema())
	assert.Equal(t, "first@example.com", rec.Get(record.FieldEmail))
}

func TestNormalizeStringifiesValues(t *testing.T) {
	rec := Normalize(record.RawHit{
		"_id":      42.0,
		"phone":    5551234567.0,
		"link":     []any{"https://a.example", "", "https://b.example"},
		"gender":   true,
		"location": map[string]any{"lat": 1},
	}, testSchema())

	assert.Equal(t, "42", rec.ID)
	assert.Equal(t, "5551234567", rec.Get(record.FieldPhone))
	assert.Equal(t, "https://a.example, https://b.example", rec.Get(record.FieldLink))
	assert.Equal(t, "true", rec.Get(record.FieldGender))
	assert.Equal(t, "map[lat:1]", rec.Get(record.FieldLocation))
}

func TestNormalizeGeneratesStableID(t *testing.T) {
	raw := record.RawHit{"content": "user1@example.com:Secret123"}
	a := Normalize(raw, testSchema())
	b := Normalize(raw, testSchema())

	assert.Len(t, a.ID, 16)
	assert.Equal(t, a.ID, b.ID)

	other := Normalize(record.RawHit{"content": "user2@example.com:Secret123"}, testSchema())
	assert.NotEqual(t, a.ID, other.ID)
}

func TestNormalizeGeneratesIDFromConfiguredFields(t *testing.T) {
	schema := testSchema()
	schema.IDFrom = []string{"email"}

	a := Normalize(record.RawHit{"email": "a@example.com", "city": "Osaka"}, schema)
	b := Normalize(record.RawHit{"email": "a@example.com", "city": "Kyoto"}, schema)
	assert.Equal(t, a.ID, b.ID)
}

func TestNormalizeCustomSchemaFields(t *testing.T) {
	schema := SourceSchema{
		Source:       "forum",
		Fields:       map[string]record.Field{"handle": record.FieldUsername},
		IDField:      "uid",
		ScoreField:   "rank",
		ContentField: "line",
	}
	rec := Normalize(record.RawHit{"uid": "u7", "rank": "3.5", "handle": "neo", "line": "neo:matrix"}, schema)

	assert.Equal(t, "u7", rec.ID)
	assert.Equal(t, "neo", rec.Get(record.FieldUsername))
	assert.Equal(t, "matrix", rec.Get(record.FieldPassword))
	assert.Equal(t, 3.5, rec.Relevance)
}

func TestNativeScoreClamps(t *testing.T) {
	schema := testSchema()
	assert.Equal(t, 0.0, NativeScore(record.RawHit{"_score": -1.0}, schema))
	assert.Equal(t, 0.0, NativeScore(record.RawHit{"_score": math.NaN()}, schema))
	assert.Equal(t, 0.0, NativeScore(record.RawHit{"_score": "n/a"}, schema))
	assert.Equal(t, 0.0, NativeScore(record.RawHit{}, schema))
	assert.Equal(t, 7.0, NativeScore(record.RawHit{"_score": 7}, schema))
}

func TestNormalizeBatchRescalesRelevance(t *testing.T) {
	recs := NormalizeBatch([]record.RawHit{
		{"_id": "a", "_score": 10.0},
		{"_id": "b", "_score": 5.0},
		{"_id": "c"},
	}, testSchema())

	require.Len(t, recs, 3)
	assert.Equal(t, 1.0, recs[0].Relevance)
	assert.Equal(t, 0.5, recs[1].Relevance)
	assert.Equal(t, 0.0, recs[2].Relevance)
}

func TestNormalizeBatchWithoutScores(t *testing.T) {
	recs := NormalizeBatch([]record.RawHit{{"_id": "a"}, {"_id": "b"}}, testSchema())
	for _, r := range recs {
		assert.Equal(t, 0.0, r.Relevance)
	}
	assert.Empty(t, NormalizeBatch(nil, testSchema()))
}

func TestSchemaValidate(t *testing.T) {
	require.NoError(t, testSchema().Validate())

	err := SourceSchema{Source: "x", Fields: map[string]record.Field{"a": "bogus"}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")

	require.Error(t, SourceSchema{}.Validate())
}

func TestNormalizeListsExposedFields(t *testing.T) {
	rec := Normalize(record.RawHit{
		"_id":     "1",
		"content": "victim@example.com:hunter2",
		"phone":   "+1 555 0100",
	}, testSchema())

	assert.Equal(t, []record.Field{record.FieldEmail, record.FieldPhone, record.FieldPassword}, rec.Exposed)
}
