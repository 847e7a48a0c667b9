package redisearch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"
)

const opSearch = "FT.SEARCH"

// ErrIndexNotFound is returned when the server does not know the index.
var ErrIndexNotFound = errors.New("redisearch: index not found")

// Error wraps a server or transport error with the command that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// TextQuery is a free-text FT.SEARCH lookup.
type TextQuery struct {
	Index string
	Query string
	// Fields restricts matching to the listed TEXT fields; empty searches all of them.
	Fields []string
	Limit  int
}

// Entry is one matched document.
type Entry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// Result is a parsed FT.SEARCH reply.
type Result struct {
	Total   int
	Entries []Entry
}

// Search runs FT.SEARCH with WITHSCORES and returns at most q.Limit entries.
func (c *Client) Search(ctx context.Context, q *TextQuery) (*Result, error) {
	if q.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	args := []string{
		q.Index, buildTextQuery(q.Query, q.Fields),
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(q.Limit),
		"DIALECT", "2",
	}

	cmd := c.client.B().Arbitrary(opSearch).Args(args...).Build()
	raw, err := c.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
			return nil, &Error{Op: opSearch, Err: fmt.Errorf("%w: %s", ErrIndexNotFound, q.Index)}
		}
		return nil, &Error{Op: opSearch, Err: err}
	}

	return parseScoredResult(raw)
}

func buildTextQuery(text string, fields []string) string {
	terms := strings.Fields(text)
	escaped := make([]string, 0, len(terms))
	for _, t := range terms {
		escaped = append(escaped, escapeQuery(t))
	}
	body := strings.Join(escaped, " ")
	if len(fields) == 0 {
		return body
	}
	return fmt.Sprintf("@%s:(%s)", strings.Join(fields, "|"), body)
}

// parseScoredResult reads the 3-stride reply [total, key, score, fields, ...].
func parseScoredResult(raw []rueidis.RedisMessage) (*Result, error) {
	if len(raw) == 0 {
		return &Result{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &Result{}, nil
	}

	entries := make([]Entry, 0, (len(raw)-1)/3)
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, Entry{
			Key:    key,
			Score:  score,
			Fields: parseFieldPairs(fields),
		})
	}

	return &Result{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), substr)
}

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`.`, `\.`,
	`:`, `\:`,
	`,`, `\,`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`#`, `\#`,
	`&`, `\&`,
	`/`, `\/`,
)
