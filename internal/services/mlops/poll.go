package mlops

import (
	"context"
	"fmt"
	"time"
)

// DescribeFunc fetches the current status of a job by name.
type DescribeFunc func(ctx context.Context, jobName string) (JobStatus, error)

// PollUntilDone polls the job at a fixed interval until it reaches a terminal
// state or the context is cancelled. It returns the terminal status; callers
// decide what a non-Completed state means for them.
func PollUntilDone(ctx context.Context, jobName string, interval time.Duration, describe DescribeFunc) (JobStatus, error) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := describe(ctx, jobName)
		if err != nil {
			return JobStatus{}, err
		}
		if status.State.Terminal() {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return JobStatus{}, fmt.Errorf("waiting for job %s: %w", jobName, ctx.Err())
		case <-ticker.C:
		}
	}
}
