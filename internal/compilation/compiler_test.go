package compilation_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"windsentry/internal/compilation"
	"windsentry/internal/logging"
	"windsentry/internal/objectstore"
	"windsentry/internal/queue"
	"windsentry/internal/services"
	"windsentry/internal/services/mlops"
	"windsentry/internal/testsupport"
)

type fakeCompileAPI struct {
	spec          *mlops.CompilationSpec
	state         mlops.JobState
	artifactURI   string
	failureReason string
}

func (f *fakeCompileAPI) StartTrainingJob(ctx context.Context, spec mlops.TrainingJobSpec) error {
	return nil
}

func (f *fakeCompileAPI) DescribeTrainingJob(ctx context.Context, jobName string) (mlops.JobStatus, error) {
	return mlops.JobStatus{State: mlops.JobStateCompleted}, nil
}

func (f *fakeCompileAPI) StartTransformJob(ctx context.Context, spec mlops.TransformSpec) error {
	return nil
}

func (f *fakeCompileAPI) DescribeTransformJob(ctx context.Context, jobName string) (mlops.JobStatus, error) {
	return mlops.JobStatus{State: mlops.JobStateCompleted}, nil
}

func (f *fakeCompileAPI) StartCompilationJob(ctx context.Context, spec mlops.CompilationSpec) error {
	f.spec = &spec
	return nil
}

func (f *fakeCompileAPI) DescribeCompilationJob(ctx context.Context, jobName string) (mlops.JobStatus, error) {
	return mlops.JobStatus{State: f.state, ArtifactURI: f.artifactURI, FailureReason: f.failureReason}, nil
}

func (f *fakeCompileAPI) StartPackagingJob(ctx context.Context, spec mlops.PackagingSpec) error {
	return nil
}

func (f *fakeCompileAPI) DescribePackagingJob(ctx context.Context, jobName string) (mlops.JobStatus, error) {
	return mlops.JobStatus{State: mlops.JobStateCompleted}, nil
}

type fakeObjects struct{}

func (fakeObjects) Upload(ctx context.Context, key, localPath string) error   { return nil }
func (fakeObjects) Download(ctx context.Context, key, localPath string) error { return nil }
func (fakeObjects) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, io.EOF
}
func (fakeObjects) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	return nil
}
func (fakeObjects) List(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	return nil, nil
}
func (fakeObjects) URI(key string) string { return "s3://windsentry-test/" + key }
func (fakeObjects) Bucket() string        { return "windsentry-test" }

func TestCompilerExecuteRecordsCompiledModel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cloud.PollIntervalSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewDataset(t, store, filepath.Join(testsupport.BaseDir(cfg), "a.csv.gz"), "turbine-a")
	item.ModelArtifactURI = "s3://windsentry-test/models/model.tar.gz"

	fake := &fakeCompileAPI{state: mlops.JobStateCompleted, artifactURI: "s3://windsentry-test/compiled/model-aarch64.tar.gz"}
	compiler := compilation.NewCompilerWithDependencies(cfg, store, logging.NewNop(), fake, fakeObjects{})

	if err := compiler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.CompiledModelURI != fake.artifactURI {
		t.Fatalf("compiled model uri %q", item.CompiledModelURI)
	}
	if !strings.HasPrefix(item.CompilationJobName, "windsentry-compile-") {
		t.Fatalf("job name %q", item.CompilationJobName)
	}
	if fake.spec == nil {
		t.Fatal("compilation job not started")
	}
	if fake.spec.Framework != cfg.Compilation.Framework {
		t.Fatalf("framework %q", fake.spec.Framework)
	}
	if fake.spec.ModelArtifactURI != item.ModelArtifactURI {
		t.Fatalf("model artifact %q", fake.spec.ModelArtifactURI)
	}
}

func TestCompilerExecuteFailsOnJobFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cloud.PollIntervalSeconds = 0
	store := testsupport.MustOpenStore(t, cfg)

	item := testsupport.NewDataset(t, store, filepath.Join(testsupport.BaseDir(cfg), "b.csv.gz"), "turbine-b")
	item.ModelArtifactURI = "s3://windsentry-test/models/model.tar.gz"

	fake := &fakeCompileAPI{state: mlops.JobStateFailed, failureReason: "UnsupportedOperator"}
	compiler := compilation.NewCompilerWithDependencies(cfg, store, logging.NewNop(), fake, fakeObjects{})

	err := compiler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for failed compilation")
	}
	if !strings.Contains(err.Error(), "UnsupportedOperator") {
		t.Fatalf("failure reason not surfaced: %v", err)
	}
	if status := services.FailureStatus(err); status != queue.StatusFailed {
		t.Fatalf("compilation failure should fail the item, got %s", status)
	}
}

func TestCompilerExecuteWithoutModel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewDataset(t, store, filepath.Join(testsupport.BaseDir(cfg), "c.csv.gz"), "turbine-c")

	compiler := compilation.NewCompilerWithDependencies(cfg, store, logging.NewNop(), &fakeCompileAPI{}, fakeObjects{})
	err := compiler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error without model artifact")
	}
	if status := services.FailureStatus(err); status != queue.StatusReview {
		t.Fatalf("missing artifact should park for review, got %s", status)
	}
}
