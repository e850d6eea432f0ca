package tally

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T, max int) (*RedisBuffer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBuffer(client, time.Hour, max), mr
}

func TestInterestTally_Merge(t *testing.T) {
	tests := []struct {
		name      string
		submitted InterestTally
		buffered  InterestTally
		want      InterestTally
	}{
		{
			name:      "sum per slug",
			submitted: InterestTally{"graph-db": 2, "rdf": 1},
			buffered:  InterestTally{"graph-db": 3, "sparql": 4},
			want:      InterestTally{"graph-db": 5, "rdf": 1, "sparql": 4},
		},
		{
			name:      "empty buffer",
			submitted: InterestTally{"rdf": 1},
			buffered:  InterestTally{},
			want:      InterestTally{"rdf": 1},
		},
		{
			name:      "submitted zero survives",
			submitted: InterestTally{"python": 3, "devops": 0},
			buffered:  InterestTally{},
			want:      InterestTally{"python": 3, "devops": 0},
		},
		{
			name:      "buffered zero survives",
			submitted: InterestTally{},
			buffered:  InterestTally{"rdf": 0},
			want:      InterestTally{"rdf": 0},
		},
		{
			name:      "negative counts clamp to zero",
			submitted: InterestTally{"rdf": -2},
			buffered:  InterestTally{"sparql": -1, "owl": 1},
			want:      InterestTally{"rdf": 0, "sparql": 0, "owl": 1},
		},
		{
			name: "both empty",
			want: InterestTally{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.submitted.Merge(tt.buffered))
		})
	}
}

func TestInterestTally_PropertiesAndIncrement(t *testing.T) {
	tally := InterestTally{}
	tally.Increment("Graph-DB", " rdf ", "", "graph-db")

	assert.Equal(t, InterestTally{"graph-db": 2, "rdf": 1}, tally)
	assert.Equal(t, []string{"graph-db", "rdf"}, tally.Slugs())
	assert.Equal(t, map[string]string{
		"interest_graph-db": "2",
		"interest_rdf":      "1",
	}, tally.Properties("interest_"))
}

func TestRedisBuffer_AddLoadReset(t *testing.T) {
	buf, mr := newTestBuffer(t, 64)
	ctx := context.Background()

	got, err := buf.Add(ctx, "Ada@Example.com", []string{"graph-db", "rdf"})
	require.NoError(t, err)
	assert.Equal(t, InterestTally{"graph-db": 1, "rdf": 1}, got)

	got, err = buf.Add(ctx, "ada@example.com", []string{"GRAPH-DB"})
	require.NoError(t, err)
	assert.Equal(t, InterestTally{"graph-db": 2, "rdf": 1}, got)

	assert.True(t, mr.Exists("tally:ada@example.com"))
	assert.Equal(t, time.Hour, mr.TTL("tally:ada@example.com"))

	loaded, err := buf.Load(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, got, loaded)

	require.NoError(t, buf.Reset(ctx, "ada@example.com"))
	loaded, err = buf.Load(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRedisBuffer_BoundedGrowth(t *testing.T) {
	buf, _ := newTestBuffer(t, 2)
	ctx := context.Background()

	_, err := buf.Add(ctx, "ada@example.com", []string{"a", "b"})
	require.NoError(t, err)

	got, err := buf.Add(ctx, "ada@example.com", []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, InterestTally{"a": 2, "b": 1}, got, "new slug beyond the bound is dropped, known slug still counts")
}

func TestRedisBuffer_TTLExpiry(t *testing.T) {
	buf, mr := newTestBuffer(t, 64)
	ctx := context.Background()

	_, err := buf.Add(ctx, "ada@example.com", []string{"rdf"})
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	loaded, err := buf.Load(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRedisBuffer_NoSlugs(t *testing.T) {
	buf, mr := newTestBuffer(t, 64)

	got, err := buf.Add(context.Background(), "ada@example.com", []string{" ", ""})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, mr.Exists("tally:ada@example.com"))
}

func TestRedisBuffer_Failures(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer client.Close()
	buf := NewRedisBuffer(client, time.Hour, 64)
	ctx := context.Background()

	mock.ExpectHGetAll("tally:ada@example.com").SetErr(errors.New("connection reset"))
	_, err := buf.Load(ctx, "ada@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load tally")

	mock.ExpectDel("tally:ada@example.com").SetErr(errors.New("connection reset"))
	err = buf.Reset(ctx, "ada@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset tally")

	mock.ExpectHGetAll("tally:bob@example.com").SetVal(map[string]string{"rdf": "x"})
	_, err = buf.Load(ctx, "bob@example.com")
	require.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNopBuffer(t *testing.T) {
	var buf Buffer = NopBuffer{}
	got, err := buf.Add(context.Background(), "a@example.com", []string{"rdf"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, buf.Reset(context.Background(), "a@example.com"))
}
