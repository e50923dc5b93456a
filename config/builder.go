package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-xray-sdk-go/xray"
	"golang.org/x/exp/slog"

	sensorpipeline "github.com/PeifengLi/DynamoDB-Mini-Project"
)

// Build wires the AWS clients, the optional failure notifier and checkpoint,
// and returns the batch handler. Clients are built once per process.
func (c *Config) Build(ctx context.Context, xraySegmentName string) (handler *sensorpipeline.Handler, err error) {
	logger := c.Logger(os.Stdout)
	slog.SetDefault(logger)

	if c.Tracing.Enabled {
		if err = xray.Configure(xray.Config{ServiceVersion: "1.0.0"}); err != nil {
			return nil, fmt.Errorf("could not configure X-Ray: %w", err)
		}

		// Not part of a Lambda request yet, so the configuration gets its own segment.
		var segment *xray.Segment
		_, segment = xray.BeginSegment(ctx, xraySegmentName)
		defer func() { segment.Close(err) }()
	}

	awsSession, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("could not create AWS session: %w", err)
	}

	dynamoSvc := dynamodb.New(awsSession, c.DynamoDbConfig())
	if c.Tracing.Enabled {
		xray.AWS(dynamoSvc.Client)
	}

	store := sensorpipeline.NewReadingStore(dynamoSvc, c.Aws.DynamoDb.TableName)
	handler = &sensorpipeline.Handler{
		Processor: sensorpipeline.NewProcessor(store, logger, c.Processor.MaxConcurrency),
		Logger:    logger,
	}

	if len(c.Failures.QueueNames) > 0 {
		sqsSvc := sqs.New(awsSession, c.SqsConfig())
		if c.Tracing.Enabled {
			xray.AWS(sqsSvc.Client)
		}
		handler.Notifier = sensorpipeline.NewFailureNotifier(sqsSvc, c.Failures.QueueNames)
	}

	if c.Checkpoint.ConnectionString != "" {
		checkpoint, err := sensorpipeline.NewPostgresCheckpoint(c.Checkpoint.ConnectionString, c.Checkpoint.ConsumerName)
		if err != nil {
			return nil, fmt.Errorf("could not open checkpoint database: %w", err)
		}
		handler.Checkpointer = checkpoint
	}

	logger.Info("Configured handler",
		"table", c.Aws.DynamoDb.TableName,
		"max_concurrency", c.Processor.MaxConcurrency,
		"failure_queues", len(c.Failures.QueueNames),
		"checkpoint", c.Checkpoint.ConnectionString != "",
		"tracing", c.Tracing.Enabled)
	return handler, nil
}
