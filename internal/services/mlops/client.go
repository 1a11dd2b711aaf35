package mlops

import "context"

// JobState is the normalized lifecycle state of a managed cloud job.
type JobState string

const (
	JobStateInProgress JobState = "InProgress"
	JobStateCompleted  JobState = "Completed"
	JobStateFailed     JobState = "Failed"
	JobStateStopped    JobState = "Stopped"
)

// Terminal reports whether the job has finished, successfully or not.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateStopped:
		return true
	}
	return false
}

// Succeeded reports whether the job finished successfully.
func (s JobState) Succeeded() bool {
	return s == JobStateCompleted
}

// JobStatus is a point-in-time snapshot of a managed job.
type JobStatus struct {
	State         JobState
	ArtifactURI   string
	FailureReason string
}

// TrainingJobSpec describes a model training run.
type TrainingJobSpec struct {
	JobName           string
	Image             string
	RoleArn           string
	InputURI          string
	OutputURI         string
	InstanceType      string
	InstanceCount     int
	VolumeSizeGB      int
	MaxRuntimeSeconds int
	Hyperparameters   map[string]string
}

// TransformSpec describes a batch transform run over a trained model.
type TransformSpec struct {
	JobName          string
	ModelName        string
	Image            string
	RoleArn          string
	ModelArtifactURI string
	InputURI         string
	OutputURI        string
	InstanceType     string
	InstanceCount    int
}

// CompilationSpec describes a model compilation run targeting edge hardware.
type CompilationSpec struct {
	JobName           string
	RoleArn           string
	ModelArtifactURI  string
	OutputURI         string
	Framework         string
	DataInputConfig   string
	TargetOS          string
	TargetArch        string
	TargetAccel       string
	CompilerOptions   string
	MaxRuntimeSeconds int
}

// PackagingSpec describes an edge packaging run over a compiled model.
type PackagingSpec struct {
	JobName            string
	CompilationJobName string
	ModelName          string
	ModelVersion       string
	RoleArn            string
	OutputURI          string
}

// Client defines the machine learning control plane the pipeline drives.
// Every Start call is paired with a Describe call the workflow polls until
// the job reaches a terminal state.
type Client interface {
	StartTrainingJob(ctx context.Context, spec TrainingJobSpec) error
	DescribeTrainingJob(ctx context.Context, jobName string) (JobStatus, error)

	StartTransformJob(ctx context.Context, spec TransformSpec) error
	DescribeTransformJob(ctx context.Context, jobName string) (JobStatus, error)

	StartCompilationJob(ctx context.Context, spec CompilationSpec) error
	DescribeCompilationJob(ctx context.Context, jobName string) (JobStatus, error)

	StartPackagingJob(ctx context.Context, spec PackagingSpec) error
	DescribePackagingJob(ctx context.Context, jobName string) (JobStatus, error)
}
