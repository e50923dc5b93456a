package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-xray-sdk-go/xray"
	"golang.org/x/exp/slog"

	sensorpipeline "github.com/PeifengLi/DynamoDB-Mini-Project"
	"github.com/PeifengLi/DynamoDB-Mini-Project/config"
)

// Each SNS message body is the reading JSON itself, no base64.
func HandleRequest(handler *sensorpipeline.Handler, tracing bool) func(ctx context.Context, e events.SNSEvent) (sensorpipeline.BatchReport, error) {
	return func(ctx context.Context, e events.SNSEvent) (sensorpipeline.BatchReport, error) {
		logger := handler.Logger
		if logger == nil {
			logger = slog.Default()
		}
		for _, record := range e.Records {
			snsRecord := record.SNS
			logger.Debug("Received notification", "source", record.EventSource, "timestamp", snsRecord.Timestamp, "message_id", snsRecord.MessageID)
		}

		if !tracing {
			return handler.HandleSNSEvent(ctx, e), nil
		}

		var report sensorpipeline.BatchReport
		err := xray.Capture(ctx, "sns_to_dynamodb.handle", func(tracedCtx context.Context) error {
			_ = xray.AddAnnotation(tracedCtx, "records", len(e.Records))
			report = handler.HandleSNSEvent(tracedCtx, e)
			_ = xray.AddAnnotation(tracedCtx, "failed", report.Failed)
			return nil
		})
		return report, err
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("could not load config: %w", err))
	}

	handler, err := cfg.Build(context.Background(), "sns_to_dynamodb.config")
	if err != nil {
		panic(fmt.Errorf("could not build handler: %w", err))
	}

	lambda.Start(HandleRequest(handler, cfg.Tracing.Enabled))
}
