package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const itemColumns = "id, source_path, dataset_label, turbine_id, status, shard_manifest_json, stats_json, shard_prefix, training_job_name, model_artifact_uri, transform_job_name, thresholds_json, thresholds_uri, compilation_job_name, compiled_model_uri, packaging_job_name, packaged_bundle_uri, deployment_job_id, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, last_heartbeat, needs_review, review_reason"

// NewDataset enqueues a telemetry dump for the full pipeline.
func (s *Store) NewDataset(ctx context.Context, sourcePath, turbineID string) (*Item, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	label := inferLabelFromPath(sourcePath)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            source_path, dataset_label, turbine_id, status, created_at, updated_at,
            progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sourcePath,
		label,
		nullableString(turbineID),
		StatusPending,
		timestamp,
		timestamp,
		nil,
		0.0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert dataset: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// FindBySourcePath returns the first item matching a telemetry dump path.
func (s *Store) FindBySourcePath(ctx context.Context, sourcePath string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE source_path = ? ORDER BY id LIMIT 1`,
		sourcePath,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source path: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()

	err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET
            source_path = ?, dataset_label = ?, turbine_id = ?, status = ?,
            shard_manifest_json = ?, stats_json = ?, shard_prefix = ?,
            training_job_name = ?, model_artifact_uri = ?, transform_job_name = ?,
            thresholds_json = ?, thresholds_uri = ?, compilation_job_name = ?,
            compiled_model_uri = ?, packaging_job_name = ?, packaged_bundle_uri = ?,
            deployment_job_id = ?, error_message = ?, updated_at = ?,
            progress_stage = ?, progress_percent = ?, progress_message = ?,
            last_heartbeat = ?, needs_review = ?, review_reason = ?
        WHERE id = ?`,
		nullableString(item.SourcePath),
		nullableString(item.DatasetLabel),
		nullableString(item.TurbineID),
		item.Status,
		nullableString(item.ShardManifestJSON),
		nullableString(item.StatsJSON),
		nullableString(item.ShardPrefix),
		nullableString(item.TrainingJobName),
		nullableString(item.ModelArtifactURI),
		nullableString(item.TransformJobName),
		nullableString(item.ThresholdsJSON),
		nullableString(item.ThresholdsURI),
		nullableString(item.CompilationJobName),
		nullableString(item.CompiledModelURI),
		nullableString(item.PackagingJobName),
		nullableString(item.PackagedBundleURI),
		nullableString(item.DeploymentJobID),
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableTime(item.LastHeartbeat),
		boolToInt(item.NeedsReview),
		nullableString(item.ReviewReason),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// ItemsByStatus returns all items with the given status ordered by insertion.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Item, error) {
	return s.List(ctx, status)
}

// List returns items matching the provided statuses; all items when none given.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]*Item, 0, 16)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// NextForStatuses returns the oldest item whose status matches one of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, status)
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items WHERE status IN (`+makePlaceholders(len(statuses))+`) ORDER BY id LIMIT 1`,
		args...,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next item: %w", err)
	}
	return item, nil
}

// Remove deletes an item by ID. Returns true when a row was deleted.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes completed items.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every item from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes failed items.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		sourcePath       sql.NullString
		datasetLabel     sql.NullString
		turbineID        sql.NullString
		statusStr        string
		shardManifest    sql.NullString
		statsJSON        sql.NullString
		shardPrefix      sql.NullString
		trainingJob      sql.NullString
		modelArtifact    sql.NullString
		transformJob     sql.NullString
		thresholdsJSON   sql.NullString
		thresholdsURI    sql.NullString
		compilationJob   sql.NullString
		compiledModel    sql.NullString
		packagingJob     sql.NullString
		packagedBundle   sql.NullString
		deploymentJob    sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		lastHeartbeatRaw sql.NullString
		needsReview      sql.NullInt64
		reviewReason     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&datasetLabel,
		&turbineID,
		&statusStr,
		&shardManifest,
		&statsJSON,
		&shardPrefix,
		&trainingJob,
		&modelArtifact,
		&transformJob,
		&thresholdsJSON,
		&thresholdsURI,
		&compilationJob,
		&compiledModel,
		&packagingJob,
		&packagedBundle,
		&deploymentJob,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&lastHeartbeatRaw,
		&needsReview,
		&reviewReason,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                 id,
		SourcePath:         sourcePath.String,
		DatasetLabel:       datasetLabel.String,
		TurbineID:          turbineID.String,
		Status:             Status(statusStr),
		ShardManifestJSON:  shardManifest.String,
		StatsJSON:          statsJSON.String,
		ShardPrefix:        shardPrefix.String,
		TrainingJobName:    trainingJob.String,
		ModelArtifactURI:   modelArtifact.String,
		TransformJobName:   transformJob.String,
		ThresholdsJSON:     thresholdsJSON.String,
		ThresholdsURI:      thresholdsURI.String,
		CompilationJobName: compilationJob.String,
		CompiledModelURI:   compiledModel.String,
		PackagingJobName:   packagingJob.String,
		PackagedBundleURI:  packagedBundle.String,
		DeploymentJobID:    deploymentJob.String,
		ErrorMessage:       errorMessage.String,
		ProgressStage:      progressStage.String,
		ProgressPercent:    progressPercent.Float64,
		ProgressMessage:    progressMessage.String,
		ReviewReason:       reviewReason.String,
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func inferLabelFromPath(sourcePath string) string {
	base := filepath.Base(strings.TrimSpace(sourcePath))
	for _, suffix := range []string{".gz", ".csv"} {
		base = strings.TrimSuffix(base, suffix)
	}
	if base == "" || base == "." {
		return "dataset"
	}
	return base
}
