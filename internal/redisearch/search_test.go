package redisearch

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSearchParsesScoredReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var got []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			got = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("leak:1"),
			mock.RedisString("1.5"),
			mock.RedisArray(
				mock.RedisString("email"), mock.RedisString("user1@example.com"),
				mock.RedisString("password"), mock.RedisString("Secret123"),
			),
			mock.RedisString("leak:2"),
			mock.RedisString("0.5"),
			mock.RedisArray(mock.RedisString("content"), mock.RedisString("bob:pw")),
		)))

	client := NewClientForTest(c)
	res, err := client.Search(context.Background(), &TextQuery{Index: "idx:leaks", Query: "user1@example.com", Limit: 25})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"FT.SEARCH", "idx:leaks", `user1\@example\.com`,
		"WITHSCORES", "LIMIT", "0", "25", "DIALECT", "2",
	}, got)

	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "leak:1", res.Entries[0].Key)
	assert.Equal(t, 1.5, res.Entries[0].Score)
	assert.Equal(t, "Secret123", res.Entries[0].Fields["password"])
	assert.Equal(t, "bob:pw", res.Entries[1].Fields["content"])
}

func TestSearchEmptyReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	res, err := NewClientForTest(c).Search(context.Background(), &TextQuery{Index: "idx", Query: "alice", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
}

func TestSearchWrapsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	_, err := NewClientForTest(c).Search(context.Background(), &TextQuery{Index: "idx", Query: "alice", Limit: 10})
	require.Error(t, err)

	var searchErr *Error
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, "FT.SEARCH", searchErr.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSearchValidation(t *testing.T) {
	client := &Client{}
	ctx := context.Background()

	_, err := client.Search(ctx, &TextQuery{Query: "alice", Limit: 1})
	assert.Error(t, err)
	_, err = client.Search(ctx, &TextQuery{Index: "idx", Query: " ", Limit: 1})
	assert.Error(t, err)
	_, err = client.Search(ctx, &TextQuery{Index: "idx", Query: "alice"})
	assert.Error(t, err)
}

func TestBuildTextQuery(t *testing.T) {
	assert.Equal(t, `alice smith`, buildTextQuery("  alice   smith ", nil))
	assert.Equal(t, `@email|username:(j\.doe\@mail\.com)`, buildTextQuery("j.doe@mail.com", []string{"email", "username"}))
	assert.Equal(t, `\+1 \(555\) 123\-4567`, buildTextQuery("+1 (555) 123-4567", nil))
}

func TestPing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	require.NoError(t, NewClientForTest(c).Ping(context.Background()))
}
