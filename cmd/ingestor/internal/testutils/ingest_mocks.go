package testutils

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	// Closed simulates a closed connection or end of stream
	Closed bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Closed {
		return kafka.Message{}, io.EOF
	}

	if m.Index >= len(m.Messages) {
		// Returning DeadlineExceeded is a clean way to stop the reader loop in tests
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

type MockPipeline struct {
	redis.Pipeliner // Embed interface to satisfy the methods we never touch

	ExecCount    int
	ExecErr      error
	RecordedCmds []string
	Mu           sync.Mutex
}

func (m *MockPipeline) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "LPUSH "+key)
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "LTRIM "+key)
	return redis.NewStatusCmd(ctx)
}

func (m *MockPipeline) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "EXPIRE "+key)
	return redis.NewBoolCmd(ctx)
}

func (m *MockPipeline) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "PUBLISH "+channel)
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) Exec(ctx context.Context) ([]redis.Cmder, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.ExecCount++
	return nil, m.ExecErr
}

type MockRedisClient struct {
	PipelineSpy *MockPipeline

	// Latest maps cache key -> stored JSON payload served by LIndex 0.
	Latest map[string]string
	Mu     sync.Mutex
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		PipelineSpy: &MockPipeline{},
		Latest:      make(map[string]string),
	}
}

func (m *MockRedisClient) Pipeline() redis.Pipeliner {
	return m.PipelineSpy
}

func (m *MockRedisClient) LIndex(ctx context.Context, key string, index int64) *redis.StringCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if payload, ok := m.Latest[key]; ok && index == 0 {
		cmd.SetVal(payload)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (m *MockRedisClient) LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	cmd := redis.NewStringSliceCmd(ctx)
	if payload, ok := m.Latest[key]; ok {
		cmd.SetVal([]string{payload})
	} else {
		cmd.SetVal(nil)
	}
	return cmd
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}

func (m *MockRedisClient) Close() error { return nil }
