package scheduler

import (
	"context"
	"time"
)

// JobKind names what a reconciliation job checks.
type JobKind string

const (
	// JobPayment asks the gateway whether a pending payment was paid.
	JobPayment JobKind = "payment"
	// JobRefund asks the gateway whether a pending refund went through.
	JobRefund JobKind = "refund"
)

// Job is one reconciliation unit carried on the queue.
type Job struct {
	Kind JobKind `json:"kind"`
	ID   string  `json:"id"`
}

// Scheduler defines the interface for a component that schedules a job for later processing.
type Scheduler interface {
	// ScheduleJob enqueues a job for asynchronous processing after the delay.
	ScheduleJob(ctx context.Context, job Job, delay time.Duration) error
}
