package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jpoints/ingestion/internal/models"
	"jpoints/ingestion/internal/store"
)

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func TestRedisStreamSink_DatasetWritten(t *testing.T) {
	fake := &fakeStream{}
	sink := &RedisStreamSink{client: fake, stream: DefaultStream, maxLen: 1000}

	writtenAt := time.Date(2026, 3, 7, 16, 0, 0, 0, time.UTC)
	event := store.WriteEvent{
		RunID:     "run-1",
		Path:      "docs/csv/2026East_allmatch_result-J1.csv",
		Result:    store.ResultUpdated,
		Rows:      2,
		Sections:  []int{1},
		WrittenAt: writtenAt,
	}
	ds := models.Dataset{
		{SectionNo: 1, MatchIndexInSection: 1, Status: models.StatusFinished},
		{SectionNo: 1, MatchIndexInSection: 2, Status: "ＶＳ"},
	}

	require.NoError(t, sink.DatasetWritten(context.Background(), event, ds))
	require.Len(t, fake.args, 1)

	args := fake.args[0]
	assert.Equal(t, DefaultStream, args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, writtenAt.Unix(), values["timestamp"])

	var update DatasetUpdate
	require.NoError(t, sonic.Unmarshal([]byte(values["data"].(string)), &update))
	assert.Equal(t, "run-1", update.RunID)
	assert.Equal(t, "2026East_allmatch_result-J1.csv", update.Dataset)
	assert.Equal(t, "updated", update.Result)
	assert.Equal(t, 1, update.Finished)
	assert.Equal(t, []int{1}, update.Sections)
}

func TestRedisStreamSink_Error(t *testing.T) {
	sink := &RedisStreamSink{client: &fakeStream{err: errors.New("connection refused")}, stream: "s"}
	err := sink.DatasetWritten(context.Background(), store.WriteEvent{}, nil)
	assert.Error(t, err)
	assert.Equal(t, "redis_stream", sink.Name())
}
