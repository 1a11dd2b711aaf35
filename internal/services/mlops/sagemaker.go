package mlops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
)

// sagemakerAPI is the slice of the SageMaker SDK surface this package uses.
type sagemakerAPI interface {
	CreateTrainingJob(ctx context.Context, params *sagemaker.CreateTrainingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateTrainingJobOutput, error)
	DescribeTrainingJob(ctx context.Context, params *sagemaker.DescribeTrainingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeTrainingJobOutput, error)
	CreateModel(ctx context.Context, params *sagemaker.CreateModelInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateModelOutput, error)
	CreateTransformJob(ctx context.Context, params *sagemaker.CreateTransformJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateTransformJobOutput, error)
	DescribeTransformJob(ctx context.Context, params *sagemaker.DescribeTransformJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeTransformJobOutput, error)
	CreateCompilationJob(ctx context.Context, params *sagemaker.CreateCompilationJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateCompilationJobOutput, error)
	DescribeCompilationJob(ctx context.Context, params *sagemaker.DescribeCompilationJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeCompilationJobOutput, error)
	CreateEdgePackagingJob(ctx context.Context, params *sagemaker.CreateEdgePackagingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateEdgePackagingJobOutput, error)
	DescribeEdgePackagingJob(ctx context.Context, params *sagemaker.DescribeEdgePackagingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeEdgePackagingJobOutput, error)
}

// SageMaker implements Client against the real AWS control plane.
type SageMaker struct {
	api    sagemakerAPI
	logger *slog.Logger
}

// NewSageMaker loads AWS configuration for the region and returns a ready
// client.
func NewSageMaker(ctx context.Context, region string, logger *slog.Logger) (*SageMaker, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SageMaker{
		api:    sagemaker.NewFromConfig(awsCfg),
		logger: logger.With("component", "mlops"),
	}, nil
}

func (s *SageMaker) StartTrainingJob(ctx context.Context, spec TrainingJobSpec) error {
	input := &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(spec.JobName),
		RoleArn:         aws.String(spec.RoleArn),
		AlgorithmSpecification: &types.AlgorithmSpecification{
			TrainingImage:     aws.String(spec.Image),
			TrainingInputMode: types.TrainingInputModeFile,
		},
		InputDataConfig: []types.Channel{{
			ChannelName: aws.String("training"),
			ContentType: aws.String("application/x-npy"),
			DataSource: &types.DataSource{
				S3DataSource: &types.S3DataSource{
					S3DataType:             types.S3DataTypeS3Prefix,
					S3Uri:                  aws.String(spec.InputURI),
					S3DataDistributionType: types.S3DataDistributionFullyReplicated,
				},
			},
		}},
		OutputDataConfig: &types.OutputDataConfig{
			S3OutputPath: aws.String(spec.OutputURI),
		},
		ResourceConfig: &types.ResourceConfig{
			InstanceType:   types.TrainingInstanceType(spec.InstanceType),
			InstanceCount:  aws.Int32(int32(spec.InstanceCount)),
			VolumeSizeInGB: aws.Int32(int32(spec.VolumeSizeGB)),
		},
		StoppingCondition: &types.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int32(int32(spec.MaxRuntimeSeconds)),
		},
	}
	if len(spec.Hyperparameters) > 0 {
		input.HyperParameters = spec.Hyperparameters
	}
	if _, err := s.api.CreateTrainingJob(ctx, input); err != nil {
		return fmt.Errorf("create training job %s: %w", spec.JobName, err)
	}
	s.logger.Info("training job started", "job", spec.JobName, "input", spec.InputURI)
	return nil
}

func (s *SageMaker) DescribeTrainingJob(ctx context.Context, jobName string) (JobStatus, error) {
	out, err := s.api.DescribeTrainingJob(ctx, &sagemaker.DescribeTrainingJobInput{
		TrainingJobName: aws.String(jobName),
	})
	if err != nil {
		return JobStatus{}, fmt.Errorf("describe training job %s: %w", jobName, err)
	}
	status := JobStatus{
		State:         trainingState(out.TrainingJobStatus),
		FailureReason: aws.ToString(out.FailureReason),
	}
	if out.ModelArtifacts != nil {
		status.ArtifactURI = aws.ToString(out.ModelArtifacts.S3ModelArtifacts)
	}
	return status, nil
}

func (s *SageMaker) StartTransformJob(ctx context.Context, spec TransformSpec) error {
	_, err := s.api.CreateModel(ctx, &sagemaker.CreateModelInput{
		ModelName:        aws.String(spec.ModelName),
		ExecutionRoleArn: aws.String(spec.RoleArn),
		PrimaryContainer: &types.ContainerDefinition{
			Image:        aws.String(spec.Image),
			ModelDataUrl: aws.String(spec.ModelArtifactURI),
		},
	})
	if err != nil {
		return fmt.Errorf("create model %s: %w", spec.ModelName, err)
	}

	input := &sagemaker.CreateTransformJobInput{
		TransformJobName: aws.String(spec.JobName),
		ModelName:        aws.String(spec.ModelName),
		TransformInput: &types.TransformInput{
			ContentType: aws.String("application/x-npy"),
			DataSource: &types.TransformDataSource{
				S3DataSource: &types.TransformS3DataSource{
					S3DataType: types.S3DataTypeS3Prefix,
					S3Uri:      aws.String(spec.InputURI),
				},
			},
		},
		TransformOutput: &types.TransformOutput{
			S3OutputPath: aws.String(spec.OutputURI),
		},
		TransformResources: &types.TransformResources{
			InstanceType:  types.TransformInstanceType(spec.InstanceType),
			InstanceCount: aws.Int32(int32(spec.InstanceCount)),
		},
	}
	if _, err := s.api.CreateTransformJob(ctx, input); err != nil {
		return fmt.Errorf("create transform job %s: %w", spec.JobName, err)
	}
	s.logger.Info("transform job started", "job", spec.JobName, "model", spec.ModelName)
	return nil
}

func (s *SageMaker) DescribeTransformJob(ctx context.Context, jobName string) (JobStatus, error) {
	out, err := s.api.DescribeTransformJob(ctx, &sagemaker.DescribeTransformJobInput{
		TransformJobName: aws.String(jobName),
	})
	if err != nil {
		return JobStatus{}, fmt.Errorf("describe transform job %s: %w", jobName, err)
	}
	status := JobStatus{
		State:         transformState(out.TransformJobStatus),
		FailureReason: aws.ToString(out.FailureReason),
	}
	if out.TransformOutput != nil {
		status.ArtifactURI = aws.ToString(out.TransformOutput.S3OutputPath)
	}
	return status, nil
}

func (s *SageMaker) StartCompilationJob(ctx context.Context, spec CompilationSpec) error {
	input := &sagemaker.CreateCompilationJobInput{
		CompilationJobName: aws.String(spec.JobName),
		RoleArn:            aws.String(spec.RoleArn),
		InputConfig: &types.InputConfig{
			S3Uri:           aws.String(spec.ModelArtifactURI),
			DataInputConfig: aws.String(spec.DataInputConfig),
			Framework:       types.Framework(spec.Framework),
		},
		OutputConfig: &types.OutputConfig{
			S3OutputLocation: aws.String(spec.OutputURI),
			TargetPlatform: &types.TargetPlatform{
				Os:   types.TargetPlatformOs(spec.TargetOS),
				Arch: types.TargetPlatformArch(spec.TargetArch),
			},
		},
		StoppingCondition: &types.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int32(int32(spec.MaxRuntimeSeconds)),
		},
	}
	if spec.TargetAccel != "" {
		input.OutputConfig.TargetPlatform.Accelerator = types.TargetPlatformAccelerator(spec.TargetAccel)
	}
	if spec.CompilerOptions != "" {
		input.OutputConfig.CompilerOptions = aws.String(spec.CompilerOptions)
	}
	if _, err := s.api.CreateCompilationJob(ctx, input); err != nil {
		return fmt.Errorf("create compilation job %s: %w", spec.JobName, err)
	}
	s.logger.Info("compilation job started", "job", spec.JobName, "target", spec.TargetArch)
	return nil
}

func (s *SageMaker) DescribeCompilationJob(ctx context.Context, jobName string) (JobStatus, error) {
	out, err := s.api.DescribeCompilationJob(ctx, &sagemaker.DescribeCompilationJobInput{
		CompilationJobName: aws.String(jobName),
	})
	if err != nil {
		return JobStatus{}, fmt.Errorf("describe compilation job %s: %w", jobName, err)
	}
	status := JobStatus{
		State:         compilationState(out.CompilationJobStatus),
		FailureReason: aws.ToString(out.FailureReason),
	}
	if out.ModelArtifacts != nil {
		status.ArtifactURI = aws.ToString(out.ModelArtifacts.S3ModelArtifacts)
	}
	return status, nil
}

func (s *SageMaker) StartPackagingJob(ctx context.Context, spec PackagingSpec) error {
	input := &sagemaker.CreateEdgePackagingJobInput{
		EdgePackagingJobName: aws.String(spec.JobName),
		CompilationJobName:   aws.String(spec.CompilationJobName),
		ModelName:            aws.String(spec.ModelName),
		ModelVersion:         aws.String(spec.ModelVersion),
		RoleArn:              aws.String(spec.RoleArn),
		OutputConfig: &types.EdgeOutputConfig{
			S3OutputLocation: aws.String(spec.OutputURI),
		},
	}
	if _, err := s.api.CreateEdgePackagingJob(ctx, input); err != nil {
		return fmt.Errorf("create edge packaging job %s: %w", spec.JobName, err)
	}
	s.logger.Info("edge packaging job started", "job", spec.JobName, "model", spec.ModelName, "version", spec.ModelVersion)
	return nil
}

func (s *SageMaker) DescribePackagingJob(ctx context.Context, jobName string) (JobStatus, error) {
	out, err := s.api.DescribeEdgePackagingJob(ctx, &sagemaker.DescribeEdgePackagingJobInput{
		EdgePackagingJobName: aws.String(jobName),
	})
	if err != nil {
		return JobStatus{}, fmt.Errorf("describe edge packaging job %s: %w", jobName, err)
	}
	return JobStatus{
		State:         packagingState(out.EdgePackagingJobStatus),
		ArtifactURI:   aws.ToString(out.ModelArtifact),
		FailureReason: aws.ToString(out.EdgePackagingJobStatusMessage),
	}, nil
}

func trainingState(status types.TrainingJobStatus) JobState {
	switch status {
	case types.TrainingJobStatusCompleted:
		return JobStateCompleted
	case types.TrainingJobStatusFailed:
		return JobStateFailed
	case types.TrainingJobStatusStopped:
		return JobStateStopped
	default:
		return JobStateInProgress
	}
}

func transformState(status types.TransformJobStatus) JobState {
	switch status {
	case types.TransformJobStatusCompleted:
		return JobStateCompleted
	case types.TransformJobStatusFailed:
		return JobStateFailed
	case types.TransformJobStatusStopped:
		return JobStateStopped
	default:
		return JobStateInProgress
	}
}

func compilationState(status types.CompilationJobStatus) JobState {
	switch status {
	case types.CompilationJobStatusCompleted:
		return JobStateCompleted
	case types.CompilationJobStatusFailed:
		return JobStateFailed
	case types.CompilationJobStatusStopped:
		return JobStateStopped
	default:
		return JobStateInProgress
	}
}

func packagingState(status types.EdgePackagingJobStatus) JobState {
	switch status {
	case types.EdgePackagingJobStatusCompleted:
		return JobStateCompleted
	case types.EdgePackagingJobStatusFailed:
		return JobStateFailed
	case types.EdgePackagingJobStatusStopped:
		return JobStateStopped
	default:
		return JobStateInProgress
	}
}
