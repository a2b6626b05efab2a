package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

type MockKafkaWriter struct {
	Messages []kafka.Message
	Mu       sync.Mutex
	WriteErr error
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

// MockClock advances instantly so feeder loops run as fast as the test
type MockClock struct {
	CurrentTime time.Time
	Mu          sync.Mutex
}

func (c *MockClock) Now() time.Time {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	return c.CurrentTime
}

func (c *MockClock) Sleep(d time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.CurrentTime = c.CurrentTime.Add(d)
}

// MockRand returns fixed values for deterministic payloads
type MockRand struct {
	ValInt   int
	ValFloat float64
}

func (r *MockRand) Intn(n int) int {
	if r.ValInt >= n {
		return n - 1
	}
	return r.ValInt
}

func (r *MockRand) Float64() float64 { return r.ValFloat }
