package mlops

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollUntilDoneReturnsTerminalStatus(t *testing.T) {
	calls := 0
	describe := func(ctx context.Context, jobName string) (JobStatus, error) {
		calls++
		if calls < 3 {
			return JobStatus{State: JobStateInProgress}, nil
		}
		return JobStatus{State: JobStateCompleted, ArtifactURI: "s3://models/out.tar.gz"}, nil
	}

	status, err := PollUntilDone(context.Background(), "job-1", time.Millisecond, describe)
	if err != nil {
		t.Fatal(err)
	}
	if !status.State.Succeeded() {
		t.Fatalf("expected completed, got %s", status.State)
	}
	if status.ArtifactURI != "s3://models/out.tar.gz" {
		t.Fatalf("artifact uri %q", status.ArtifactURI)
	}
	if calls != 3 {
		t.Fatalf("expected 3 describes, got %d", calls)
	}
}

func TestPollUntilDonePropagatesDescribeError(t *testing.T) {
	wantErr := errors.New("throttled")
	describe := func(ctx context.Context, jobName string) (JobStatus, error) {
		return JobStatus{}, wantErr
	}
	if _, err := PollUntilDone(context.Background(), "job-2", time.Millisecond, describe); !errors.Is(err, wantErr) {
		t.Fatalf("expected describe error, got %v", err)
	}
}

func TestPollUntilDoneHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	describe := func(ctx context.Context, jobName string) (JobStatus, error) {
		cancel()
		return JobStatus{State: JobStateInProgress}, nil
	}
	if _, err := PollUntilDone(ctx, "job-3", time.Hour, describe); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestJobStateTerminal(t *testing.T) {
	for _, state := range []JobState{JobStateCompleted, JobStateFailed, JobStateStopped} {
		if !state.Terminal() {
			t.Errorf("%s should be terminal", state)
		}
	}
	if JobStateInProgress.Terminal() {
		t.Error("InProgress should not be terminal")
	}
	if JobStateFailed.Succeeded() {
		t.Error("Failed should not count as success")
	}
}
