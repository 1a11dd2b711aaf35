package iotfleet

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/iot"

	"windsentry/internal/logging"
)

type fakeIoT struct {
	input *iot.CreateJobInput
}

func (f *fakeIoT) CreateJob(ctx context.Context, params *iot.CreateJobInput, optFns ...func(*iot.Options)) (*iot.CreateJobOutput, error) {
	f.input = params
	return &iot.CreateJobOutput{}, nil
}

func TestCreateDeploymentBuildsJob(t *testing.T) {
	fake := &fakeIoT{}
	client := &IoT{api: fake, logger: logging.NewNop()}

	doc := Deployment{
		Operation:     "deploy-model",
		ModelName:     "wind-turbine-anomaly",
		ModelVersion:  "1.0",
		BundleURI:     "s3://models/bundle.tar.gz",
		ThresholdsURI: "s3://models/thresholds.json",
	}
	err := client.CreateDeployment(context.Background(), "deploy-42", "arn:aws:iot:eu-west-1:1234:thinggroup/turbines", "SNAPSHOT", doc)
	if err != nil {
		t.Fatal(err)
	}
	if fake.input == nil {
		t.Fatal("CreateJob not called")
	}
	if got := *fake.input.JobId; got != "deploy-42" {
		t.Fatalf("job id %q", got)
	}
	if len(fake.input.Targets) != 1 || fake.input.Targets[0] != "arn:aws:iot:eu-west-1:1234:thinggroup/turbines" {
		t.Fatalf("targets %v", fake.input.Targets)
	}
	if string(fake.input.TargetSelection) != "SNAPSHOT" {
		t.Fatalf("target selection %q", fake.input.TargetSelection)
	}

	var decoded Deployment
	if err := json.Unmarshal([]byte(*fake.input.Document), &decoded); err != nil {
		t.Fatalf("document not valid json: %v", err)
	}
	if decoded != doc {
		t.Fatalf("document round trip mismatch: %+v", decoded)
	}
}
