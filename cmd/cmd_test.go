package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appconfig "github.com/ca-srg/leakscope/internal/config"
	"github.com/ca-srg/leakscope/internal/metrics"
	"github.com/ca-srg/leakscope/internal/observability"
	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/source"
	"github.com/ca-srg/leakscope/internal/types"
)

func testConfig() *types.Config {
	return &types.Config{
		Env:                   "local",
		SourcesFile:           "sources.yaml",
		SearchDefaultDeadline: 2 * time.Second,
		SearchPerSourceLimit:  100,
		SearchWorkers:         2,
		HighlightWidth:        150,
		HighlightMax:          3,
		HTTPHost:              "127.0.0.1",
		HTTPPort:              8080,
	}
}

func staticSource(name string, hits ...record.RawHit) source.Binding {
	return source.Binding{Source: source.Func{
		SourceName: name,
		Fn: func(context.Context, string, int) ([]record.RawHit, error) {
			return hits, nil
		},
	}}
}

func failingSource(name string, err error) source.Binding {
	return source.Binding{Source: source.Func{
		SourceName: name,
		Fn: func(context.Context, string, int) ([]record.RawHit, error) {
			return nil, err
		},
	}}
}

// useFakeApp swaps every factory so commands run against in-memory sources
// and a temporary stats store.
func useFakeApp(t *testing.T, bindings ...source.Binding) string {
	t.Helper()
	dir := t.TempDir()
	statsPath := filepath.Join(dir, "stats.db")

	prevConfig, prevDefs, prevRegistry := loadAppConfig, loadSourceDefs, buildRegistry
	prevLogger, prevTelemetry, prevStats := newAppLogger, initTelemetry, initStats
	prevEnv, prevSources := envFile, sourcesFile

	loadAppConfig = func() (*types.Config, error) { return testConfig(), nil }
	loadSourceDefs = func(string) ([]appconfig.SourceDefinition, error) { return nil, nil }
	buildRegistry = func([]appconfig.SourceDefinition, *types.Config, *zap.Logger) (*source.Registry, error) {
		return source.NewRegistry(bindings...)
	}
	newAppLogger = func(string, string) (*zap.Logger, error) { return zap.NewNop(), nil }
	initTelemetry = func(context.Context, *types.Config, *zap.Logger) (observability.ShutdownFunc, error) {
		return func(context.Context) error { return nil }, nil
	}
	initStats = func(_ *types.Config, log *zap.Logger) error { return metrics.Init(statsPath, log) }
	envFile = filepath.Join(dir, "missing.env")
	sourcesFile = ""

	t.Cleanup(func() {
		_ = metrics.Close()
		loadAppConfig, loadSourceDefs, buildRegistry = prevConfig, prevDefs, prevRegistry
		newAppLogger, initTelemetry, initStats = prevLogger, prevTelemetry, prevStats
		envFile, sourcesFile = prevEnv, prevSources
	})
	return statsPath
}

func resetCommandFlags() {
	searchQuery, searchCorrelate, searchSources = "", false, nil
	searchDeadlineMs, searchJSON, searchCSVPath = 0, false, ""
	exportInput, exportOutput = "-", "-"
	sourcesCheck, sourcesTimeout = false, 5*time.Second
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetCommandFlags()
	t.Cleanup(resetCommandFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func breachSources() []source.Binding {
	return []source.Binding{
		staticSource("breach-a", record.RawHit{"_id": "1", "email": "victim@example.com", "password": "hunter2"}),
		staticSource("breach-b", record.RawHit{"_id": "9", "email": "victim@example.com", "username": "victim"}),
	}
}

func TestSearchCommandPrintsRecords(t *testing.T) {
	statsPath := useFakeApp(t, breachSources()...)

	out, err := execute(t, "", "search", "-q", "victim@example.com")
	require.NoError(t, err)

	assert.Contains(t, out, "Query: victim@example.com")
	assert.Contains(t, out, "Records (2):")
	assert.Contains(t, out, "[breach-a] 1")
	assert.Contains(t, out, "password: hunter2")
	assert.NotContains(t, out, "Partial results")

	store, err := metrics.NewStore(statsPath)
	require.NoError(t, err)
	defer store.Close()
	totals, err := store.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals[metrics.ModeSearch])
}

func TestSearchCommandCorrelatesAndExports(t *testing.T) {
	useFakeApp(t, breachSources()...)
	csvPath := filepath.Join(t.TempDir(), "victim.csv")

	out, err := execute(t, "", "search", "-q", "victim@example.com", "--correlate", "--csv", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Identities (1 groups, 2 records):")
	assert.Contains(t, out, "risk=HIGH")
	assert.Contains(t, out, "sources=breach-a,breach-b")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "HIGH", rows[1][2])
	assert.Equal(t, "HIGH", rows[2][2])
}

func TestSearchCommandJSONFeedsExport(t *testing.T) {
	useFakeApp(t, breachSources()...)

	jsonOut, err := execute(t, "", "search", "-q", "victim@example.com", "--json")
	require.NoError(t, err)

	var rs record.ResultSet
	require.NoError(t, json.Unmarshal([]byte(jsonOut), &rs))
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, "victim@example.com", rs.Query.Text())

	csvOut, err := execute(t, jsonOut, "export")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(csvOut, "\xEF\xBB\xBF"))
	assert.Contains(t, csvOut, "No,Source,Risk,Email,Username,Password,Phone,Name,Context")
	assert.Contains(t, csvOut, "hunter2")
}

func TestSearchCommandPartialResults(t *testing.T) {
	useFakeApp(t,
		staticSource("breach-a", record.RawHit{"_id": "1", "email": "victim@example.com"}),
		failingSource("breach-b", errors.New("connection refused")),
	)

	out, err := execute(t, "", "search", "-q", "victim@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Partial results")
	assert.Contains(t, out, "connection refused")
}

func TestSearchCommandAllSourcesFailed(t *testing.T) {
	useFakeApp(t, failingSource("breach-a", errors.New("connection refused")))

	out, err := execute(t, "", "search", "-q", "victim@example.com")
	require.Error(t, err)
	assert.Contains(t, out, "No source produced a result")
	assert.Contains(t, out, "breach-a")
}

func TestSearchCommandRejectsShortQuery(t *testing.T) {
	useFakeApp(t, breachSources()...)

	_, err := execute(t, "", "search", "-q", "ab")
	require.ErrorIs(t, err, record.ErrInvalidQuery)
}

func TestExportCommandWritesFile(t *testing.T) {
	useFakeApp(t)
	dir := t.TempDir()

	rs := &record.ResultSet{ID: "rs-1", Records: []record.Record{{
		ID: "1", Source: "breach-a",
		Fields: map[record.Field]string{record.FieldEmail: "victim@example.com"},
	}}}
	raw, err := json.Marshal(rs)
	require.NoError(t, err)
	input := filepath.Join(dir, "rs.json")
	require.NoError(t, os.WriteFile(input, raw, 0o600))
	output := filepath.Join(dir, "rs.csv")

	out, err := execute(t, "", "export", "--input", input, "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 records")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "victim@example.com")
}

func TestExportCommandRejectsBadInput(t *testing.T) {
	useFakeApp(t)
	_, err := execute(t, "{", "export")
	require.Error(t, err)
}

type pingSource struct {
	name string
	err  error
}

func (p pingSource) Name() string { return p.name }

func (p pingSource) Query(context.Context, string, int) ([]record.RawHit, error) { return nil, nil }

func (p pingSource) Ping(context.Context) error { return p.err }

func TestSourcesCommand(t *testing.T) {
	useFakeApp(t,
		source.Binding{Source: pingSource{name: "breach-a"}, Limit: 50},
		source.Binding{Source: pingSource{name: "breach-b", err: errors.New("no route")}},
	)

	out, err := execute(t, "", "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "breach-a")
	assert.Contains(t, out, "limit=50")
	assert.Contains(t, out, "limit=default")

	out, err = execute(t, "", "sources", "--check")
	require.Error(t, err)
	assert.Contains(t, out, "UNREACHABLE (no route)")
	assert.Contains(t, err.Error(), "1 of 2 sources unreachable")
}

func TestStatsCommand(t *testing.T) {
	useFakeApp(t, breachSources()...)

	_, err := execute(t, "", "search", "-q", "victim@example.com")
	require.NoError(t, err)

	out, err := execute(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Invocations:")
	assert.Regexp(t, `search\s+1`, out)
	assert.Regexp(t, `breach-a\s+ok\s+1`, out)
}

type memoryArtifacts map[string][]byte

func (m memoryArtifacts) Put(_ context.Context, path string, body []byte, _ string) error {
	m[path] = append([]byte(nil), body...)
	return nil
}

func (m memoryArtifacts) Get(_ context.Context, path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func useMemoryArtifacts(t *testing.T) memoryArtifacts {
	t.Helper()
	store := memoryArtifacts{}
	prev := newArtifactStore
	newArtifactStore = func(context.Context, *types.Config, *zap.Logger) (artifactStore, error) { return store, nil }
	t.Cleanup(func() { newArtifactStore = prev })
	return store
}

func TestS3Destinations(t *testing.T) {
	useFakeApp(t, breachSources()...)
	store := useMemoryArtifacts(t)

	jsonOut, err := execute(t, "", "search", "-q", "victim@example.com", "--json", "--csv", "s3://cases/victim.csv")
	require.NoError(t, err)
	require.Contains(t, store, "s3://cases/victim.csv")
	assert.Contains(t, string(store["s3://cases/victim.csv"]), "hunter2")

	store["s3://cases/victim.json"] = []byte(jsonOut)
	out, err := execute(t, "", "export", "-i", "s3://cases/victim.json", "-o", "s3://cases/copy.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 records to s3://cases/copy.csv")
	assert.Equal(t, store["s3://cases/victim.csv"], store["s3://cases/copy.csv"])

	_, err = execute(t, "", "export", "-i", "s3://cases/missing.json")
	assert.ErrorContains(t, err, "no such key")
}
