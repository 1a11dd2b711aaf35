// Package iotfleet dispatches edge deployment jobs to the turbine fleet. A
// deployment is an IoT job whose document tells each device where to fetch
// the packaged model bundle and the anomaly thresholds that go with it.
package iotfleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iot"
	"github.com/aws/aws-sdk-go-v2/service/iot/types"
)

// Deployment is the job document delivered to every targeted device.
type Deployment struct {
	Operation     string `json:"operation"`
	ModelName     string `json:"model_name"`
	ModelVersion  string `json:"model_version"`
	BundleURI     string `json:"bundle_uri"`
	ThresholdsURI string `json:"thresholds_uri"`
}

// Client dispatches fleet deployment jobs.
type Client interface {
	CreateDeployment(ctx context.Context, jobID, targetArn, targetSelection string, doc Deployment) error
}

type iotAPI interface {
	CreateJob(ctx context.Context, params *iot.CreateJobInput, optFns ...func(*iot.Options)) (*iot.CreateJobOutput, error)
}

// IoT implements Client against the AWS IoT control plane.
type IoT struct {
	api    iotAPI
	logger *slog.Logger
}

// New loads AWS configuration for the region and returns a ready client.
func New(ctx context.Context, region string, logger *slog.Logger) (*IoT, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IoT{
		api:    iot.NewFromConfig(awsCfg),
		logger: logger.With("component", "iotfleet"),
	}, nil
}

func (c *IoT) CreateDeployment(ctx context.Context, jobID, targetArn, targetSelection string, doc Deployment) error {
	document, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode deployment document: %w", err)
	}
	input := &iot.CreateJobInput{
		JobId:           aws.String(jobID),
		Targets:         []string{targetArn},
		Document:        aws.String(string(document)),
		TargetSelection: types.TargetSelection(targetSelection),
		Description:     aws.String(fmt.Sprintf("deploy %s %s", doc.ModelName, doc.ModelVersion)),
	}
	if _, err := c.api.CreateJob(ctx, input); err != nil {
		return fmt.Errorf("create fleet job %s: %w", jobID, err)
	}
	c.logger.Info("fleet deployment dispatched", "job", jobID, "target", targetArn, "model", doc.ModelName, "version", doc.ModelVersion)
	return nil
}
