package queue

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPreprocessing Status = "preprocessing"
	StatusPreprocessed  Status = "preprocessed"
	StatusUploading     Status = "uploading"
	StatusUploaded      Status = "uploaded"
	StatusTraining      Status = "training"
	StatusTrained       Status = "trained"
	StatusEvaluating    Status = "evaluating"
	StatusEvaluated     Status = "evaluated"
	StatusCompiling     Status = "compiling"
	StatusCompiled      Status = "compiled"
	StatusPackaging     Status = "packaging"
	StatusPackaged      Status = "packaged"
	StatusDeploying     Status = "deploying"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusReview        Status = "review"
)

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusPreprocessing,
	StatusPreprocessed,
	StatusUploading,
	StatusUploaded,
	StatusTraining,
	StatusTrained,
	StatusEvaluating,
	StatusEvaluated,
	StatusCompiling,
	StatusCompiled,
	StatusPackaging,
	StatusPackaged,
	StatusDeploying,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusPreprocessing: {},
	StatusUploading:     {},
	StatusTraining:      {},
	StatusEvaluating:    {},
	StatusCompiling:     {},
	StatusPackaging:     {},
	StatusDeploying:     {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map each processing status back to the status the
// stage started from, used when reclaiming interrupted items.
var stageRollbackTransitions = []statusTransition{
	{from: StatusPreprocessing, to: StatusPending},
	{from: StatusUploading, to: StatusPreprocessed},
	{from: StatusTraining, to: StatusUploaded},
	{from: StatusEvaluating, to: StatusTrained},
	{from: StatusCompiling, to: StatusEvaluated},
	{from: StatusPackaging, to: StatusCompiled},
	{from: StatusDeploying, to: StatusPackaged},
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Item represents one telemetry dataset moving through the pipeline,
// persisted in SQLite. Per-stage artifact references accumulate as the item
// advances; downstream stages consume them purely by reference.
type Item struct {
	ID                 int64
	SourcePath         string
	DatasetLabel       string
	TurbineID          string
	Status             Status
	ShardManifestJSON  string
	StatsJSON          string
	ShardPrefix        string
	TrainingJobName    string
	ModelArtifactURI   string
	TransformJobName   string
	ThresholdsJSON     string
	ThresholdsURI      string
	CompilationJobName string
	CompiledModelURI   string
	PackagingJobName   string
	PackagedBundleURI  string
	DeploymentJobID    string
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ProgressStage      string
	ProgressPercent    float64
	ProgressMessage    string
	LastHeartbeat      *time.Time
	NeedsReview        bool
	ReviewReason       string
}

// StagingRoot returns the directory under stagingDir holding this item's
// intermediate artifacts.
func (i Item) StagingRoot(stagingDir string) string {
	if strings.TrimSpace(stagingDir) == "" || i.ID == 0 {
		return ""
	}
	return filepath.Join(strings.TrimSpace(stagingDir), fmt.Sprintf("dataset-%d", i.ID))
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// ProcessingStatuses returns the statuses that represent in-flight stages.
func ProcessingStatuses() []Status {
	out := make([]Status, 0, len(stageRollbackTransitions))
	for _, tr := range stageRollbackTransitions {
		out = append(out, tr.from)
	}
	return out
}

// InitProgress resets progress fields for a new stage. If ProgressStage is
// currently empty it is set to the provided stage value; otherwise the
// existing stage is preserved to support resume scenarios.
func (i *Item) InitProgress(stage, message string) {
	if i.ProgressStage == "" {
		i.ProgressStage = stage
	}
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}

// SetReview parks the item for operator attention with the given reason.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
	i.ErrorMessage = reason
	i.LastHeartbeat = nil
	i.ProgressStage = "Review"
	i.ProgressMessage = reason
}
