package queue

import "context"

// Job handles every message of one type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type routed to this job.
	Type() string

	Handle(ctx context.Context, msg Message) error
}
