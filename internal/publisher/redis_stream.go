// Package publisher announces rewritten datasets on a Redis stream.
package publisher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"jpoints/ingestion/internal/models"
	"jpoints/ingestion/internal/store"
)

// DefaultStream receives one entry per dataset rewrite.
const DefaultStream = "jpoints.datasets.updated"

// DatasetUpdate is the JSON document carried in the stream entry's data field.
type DatasetUpdate struct {
	RunID     string    `json:"run_id"`
	Dataset   string    `json:"dataset"`
	Path      string    `json:"path"`
	Result    string    `json:"result"`
	Rows      int       `json:"rows"`
	Sections  []int     `json:"sections"`
	Finished  int       `json:"finished"`
	WrittenAt time.Time `json:"written_at"`
}

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSink publishes dataset rewrites to a Redis stream.
type RedisStreamSink struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewRedisStreamSink creates a sink on an existing client. maxLen caps the
// stream length approximately; zero leaves it unbounded.
func NewRedisStreamSink(client *redis.Client, stream string, maxLen int64) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Name identifies the sink in logs and metrics.
func (s *RedisStreamSink) Name() string {
	return "redis_stream"
}

// DatasetWritten publishes one stream entry for a rewrite.
func (s *RedisStreamSink) DatasetWritten(ctx context.Context, event store.WriteEvent, ds models.Dataset) error {
	data, err := sonic.Marshal(NewDatasetUpdate(event, ds))
	if err != nil {
		return fmt.Errorf("failed to encode dataset update: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": event.WrittenAt.Unix(),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.stream, err)
	}
	return nil
}

// NewDatasetUpdate summarizes a rewrite.
func NewDatasetUpdate(event store.WriteEvent, ds models.Dataset) DatasetUpdate {
	finished := 0
	for i := range ds {
		if ds[i].IsFinished() {
			finished++
		}
	}
	return DatasetUpdate{
		RunID:     event.RunID,
		Dataset:   filepath.Base(event.Path),
		Path:      event.Path,
		Result:    string(event.Result),
		Rows:      event.Rows,
		Sections:  event.Sections,
		Finished:  finished,
		WrittenAt: event.WrittenAt,
	}
}
