package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"qrollcall/internal/queue"
)

// JobType marks queue messages carrying mail jobs.
const JobType = "email"

// Job is the queued form of one outbound message.
type Job struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Enqueuer publishes mail jobs for the worker to deliver. It satisfies the
// student service's Notifier.
type Enqueuer struct {
	q queue.Queue
}

// NewEnqueuer wraps a queue.
func NewEnqueuer(q queue.Queue) *Enqueuer {
	return &Enqueuer{q: q}
}

// Notify queues one message.
func (e *Enqueuer) Notify(ctx context.Context, to, subject, body string) error {
	data, err := json.Marshal(Job{To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("mailer: encode job: %w", err)
	}
	return e.q.Publish(ctx, queue.Message{Type: JobType, Body: data})
}

// DecodeJob parses a queue message back into a Job.
func DecodeJob(msg queue.Message) (Job, error) {
	var job Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return Job{}, fmt.Errorf("mailer: decode job: %w", err)
	}
	return job, nil
}
