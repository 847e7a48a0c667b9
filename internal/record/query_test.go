package record

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryRejectsShortText(t *testing.T) {
	for _, text := range []string{"", "  ", "ab", "  ab  ", "éé"} {
		_, err := NewQuery(text, Options{})
		require.Error(t, err, "text %q", text)
		assert.True(t, errors.Is(err, ErrInvalidQuery))

		var invalid *InvalidQueryError
		require.True(t, errors.As(err, &invalid))
		assert.Contains(t, invalid.Reason, "at least 3")
	}
}

func TestNewQueryCountsCharactersNotBytes(t *testing.T) {
	q, err := NewQuery("日本語", Options{})
	require.NoError(t, err)
	assert.Equal(t, "日本語", q.Text())
}

func TestNewQueryRejectsNegativeDeadline(t *testing.T) {
	_, err := NewQuery("alice", Options{DeadlineMs: -1})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQueryTerms(t *testing.T) {
	q, err := NewQuery("  Alice@Example.com   alice@example.com Smith ", Options{})
	require.NoError(t, err)

	assert.Equal(t, "Alice@Example.com   alice@example.com Smith", q.Text())
	assert.Equal(t, []string{"alice@example.com", "smith"}, q.Terms())
}

func TestQueryTermsAddPhoneDigits(t *testing.T) {
	q, err := NewQuery("+1 (555) 123-4567", Options{})
	require.NoError(t, err)
	assert.Contains(t, q.Terms(), "15551234567")

	q, err = NewQuery("555 12", Options{})
	require.NoError(t, err)
	assert.NotContains(t, q.Terms(), "55512")
}

func TestPhoneDigits(t *testing.T) {
	assert.Equal(t, "5551234567", PhoneDigits("555.123.4567"))
	assert.Equal(t, "", PhoneDigits("call 5551234567"))
	assert.Equal(t, "", PhoneDigits("12345"))
	assert.Equal(t, "", PhoneDigits("1234567890123456"))
}

func TestQuerySourceFilter(t *testing.T) {
	q, err := NewQuery("alice", Options{SourceFilter: []string{"b", " a ", "b", ""}})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, q.SourceFilter())
	assert.True(t, q.Selects("a"))
	assert.False(t, q.Selects("c"))

	all, err := NewQuery("alice", Options{})
	require.NoError(t, err)
	assert.True(t, all.Selects("anything"))
}

func TestQueryAccessorsReturnCopies(t *testing.T) {
	q, err := NewQuery("alice smith", Options{SourceFilter: []string{"a"}})
	require.NoError(t, err)

	terms := q.Terms()
	terms[0] = "mutated"
	assert.Equal(t, "alice", q.Terms()[0])

	filter := q.SourceFilter()
	filter[0] = "mutated"
	assert.Equal(t, []string{"a"}, q.SourceFilter())
}

func TestQueryJSONRoundTrip(t *testing.T) {
	q, err := NewQuery("alice smith", Options{Correlate: true, SourceFilter: []string{"leaks"}, DeadlineMs: 1500})
	require.NoError(t, err)

	data, err := json.Marshal(q)
	require.NoError(t, err)

	var decoded Query
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, q.Text(), decoded.Text())
	assert.Equal(t, q.Terms(), decoded.Terms())
	assert.Equal(t, 1500*time.Millisecond, decoded.Deadline())
	assert.True(t, decoded.Correlate())
	assert.Equal(t, []string{"leaks"}, decoded.SourceFilter())
}

func TestQueryUnmarshalValidates(t *testing.T) {
	var q Query
	err := json.Unmarshal([]byte(`{"text":"ab","options":{}}`), &q)
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestZeroQueryJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(Query{})
	require.NoError(t, err)

	var decoded Query
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.IsZero())
}
