package queue

import (
	"context"
	"fmt"
	"time"
)

func rollbackCaseArgs() ([]any, []any) {
	caseArgs := make([]any, 0, len(stageRollbackTransitions)*2)
	inArgs := make([]any, 0, len(stageRollbackTransitions))
	for _, tr := range stageRollbackTransitions {
		caseArgs = append(caseArgs, tr.from, tr.to)
		inArgs = append(inArgs, tr.from)
	}
	return caseArgs, inArgs
}

func rollbackCaseSQL() string {
	sql := `UPDATE queue_items SET status = CASE status`
	for range stageRollbackTransitions {
		sql += ` WHEN ? THEN ?`
	}
	sql += ` ELSE status END`
	return sql
}

// ResetStuckProcessing resets items in processing states back to the start of
// their current stage. Used on daemon startup before any heartbeat exists.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseArgs, inArgs := rollbackCaseArgs()
	args := make([]any, 0, len(caseArgs)+1+len(inArgs))
	args = append(args, caseArgs...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, inArgs...)

	res, err := s.execWithRetry(
		ctx,
		rollbackCaseSQL()+`,
            progress_stage = 'Reset from stuck processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(inArgs))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// TransitionToProcessing claims an item for a stage by moving it out of the
// expected stable status. The status predicate makes the claim safe against a
// concurrent operator action (remove, retry, clear) between reading the row
// and writing it: if the stored status no longer matches, nothing is written
// and false is returned.
func (s *Store) TransitionToProcessing(ctx context.Context, item *Item, expected Status) (bool, error) {
	if item == nil {
		return false, fmt.Errorf("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET
            status = ?, progress_stage = ?, progress_percent = ?, progress_message = ?,
            error_message = NULL, last_heartbeat = ?, updated_at = ?
        WHERE id = ? AND status = ?`,
		item.Status,
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableTime(item.LastHeartbeat),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
		expected,
	)
	if err != nil {
		return false, fmt.Errorf("transition to processing: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition to processing: %w", err)
	}
	return rows > 0, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns items stuck in processing back to the start
// of their current stage when heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	caseArgs, inArgs := rollbackCaseArgs()
	args := make([]any, 0, len(caseArgs)+1+len(inArgs)+1)
	args = append(args, caseArgs...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, inArgs...)
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	res, err := s.execWithRetry(
		ctx,
		rollbackCaseSQL()+`,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(inArgs))+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed items back to pending for reprocessing. With no
// IDs all failed items are retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, needs_review = 0,
                review_reason = NULL, updated_at = ?
            WHERE status IN (?, ?)`,
			StatusPending,
			timestamp,
			StatusFailed,
			StatusReview,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	args := make([]any, 0, len(ids)+4)
	args = append(args, StatusPending, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed, StatusReview)
	query := `UPDATE queue_items
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, needs_review = 0,
            review_reason = NULL, updated_at = ?
        WHERE id IN (` + makePlaceholders(len(ids)) + `) AND status IN (?, ?)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}
