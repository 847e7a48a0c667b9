package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/metrics"
	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/search"
)

type fakeSearcher struct {
	gotText string
	gotOpts record.Options
	rs      *record.ResultSet
	err     error
}

func (f *fakeSearcher) SearchText(_ context.Context, text string, opts record.Options) (*record.ResultSet, error) {
	f.gotText = text
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.rs, nil
}

func (f *fakeSearcher) Sources() []string {
	return []string{"combolists", "forums"}
}

func connect(t *testing.T, s Searcher) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	srv := New(s, "test", zap.NewNop())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := srv.SDK().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func textOf(t *testing.T, c mcp.Content) string {
	t.Helper()
	tc, ok := c.(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", c)
	return tc.Text
}

func TestListsTools(t *testing.T) {
	cs := connect(t, &fakeSearcher{})

	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{leakSearchToolName, listSourcesToolName}, names)
}

func TestLeakSearchReturnsResultSet(t *testing.T) {
	store, err := metrics.NewStore(t.TempDir() + "/stats.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	metrics.SetStoreForTesting(store)
	t.Cleanup(func() { metrics.SetStoreForTesting(nil) })

	fake := &fakeSearcher{rs: &record.ResultSet{
		ID: "rs-1",
		Records: []record.Record{
			{ID: "1", Source: "combolists", Score: 0.9, Fields: map[record.Field]string{record.FieldEmail: "user1@example.com"}},
		},
		Truncated: true,
		Sources: []record.SourceStatus{
			{Name: "combolists", State: record.SourceOK, Hits: 1},
			{Name: "forums", State: record.SourceTimeout},
		},
	}}
	cs := connect(t, fake)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name: leakSearchToolName,
		Arguments: map[string]any{
			"query":       "user1@example.com",
			"correlate":   true,
			"sources":     []string{"combolists"},
			"deadline_ms": 500,
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 2)

	assert.Equal(t, "user1@example.com", fake.gotText)
	assert.Equal(t, record.Options{Correlate: true, SourceFilter: []string{"combolists"}, DeadlineMs: 500}, fake.gotOpts)

	assert.Equal(t, "1 records (truncated: forums=timeout)", textOf(t, res.Content[0]))

	var decoded record.ResultSet
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res.Content[1])), &decoded))
	assert.Equal(t, "rs-1", decoded.ID)
	require.Len(t, decoded.Records, 1)
	assert.Equal(t, "user1@example.com", decoded.Records[0].Get(record.FieldEmail))

	totals, err := store.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals[metrics.ModeMCP])
}

func TestLeakSearchErrorsAreToolResults(t *testing.T) {
	tests := []struct {
		name string
		err  error
		args map[string]any
	}{
		{
			name: "invalid query",
			err:  &record.InvalidQueryError{Reason: "query must be at least 3 characters"},
			args: map[string]any{"query": "ab"},
		},
		{
			name: "all sources failed",
			err:  &search.AllSourcesFailedError{},
			args: map[string]any{"query": "user1"},
		},
		{
			name: "deadline out of range",
			args: map[string]any{"query": "user1", "deadline_ms": maxDeadlineMs + 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := connect(t, &fakeSearcher{err: tt.err})
			res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
				Name:      leakSearchToolName,
				Arguments: tt.args,
			})
			require.NoError(t, err)
			assert.True(t, res.IsError)
			require.NotEmpty(t, res.Content)
			assert.NotEmpty(t, textOf(t, res.Content[0]))
		})
	}
}

func TestListSources(t *testing.T) {
	cs := connect(t, &fakeSearcher{})

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: listSourcesToolName})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	assert.JSONEq(t, `{"sources":["combolists","forums"]}`, textOf(t, res.Content[0]))
}

func TestSummaryCorrelated(t *testing.T) {
	rs := &record.ResultSet{
		Correlated: true,
		Groups: []record.Group{
			{Members: []record.Record{{ID: "a"}, {ID: "b"}}},
			{Members: []record.Record{{ID: "c"}}},
		},
	}
	assert.Equal(t, "3 records in 2 groups", summary(rs))
}
