package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher enqueues typed messages.
type Publisher interface {
	Enqueue(ctx context.Context, msgType, id string, payload interface{}) (string, error)
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers       int           // number of workers
	RetryLimit    int           // number of maximum retries
	RetryDelay    time.Duration // time delay between retries
	PollTimeout   time.Duration // BRPOP block time
	RetryInterval time.Duration // how often due retries are moved back
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals the payload of msg into a new T.
func Decode[T any](msg Message) (*T, error) {
	var result T
	if len(msg.Payload) == 0 {
		return nil, fmt.Errorf("message %s has no payload", msg.ID)
	}
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return &result, nil
}
