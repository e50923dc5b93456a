package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-xray-sdk-go/xray"

	sensorpipeline "github.com/PeifengLi/DynamoDB-Mini-Project"
	"github.com/PeifengLi/DynamoDB-Mini-Project/config"
)

type LambdaFunc func(ctx context.Context, e sensorpipeline.KinesisEvent) (sensorpipeline.BatchReport, error)

func HandleRequest(handler *sensorpipeline.Handler, tracing bool) LambdaFunc {
	return func(ctx context.Context, e sensorpipeline.KinesisEvent) (sensorpipeline.BatchReport, error) {
		if !tracing {
			return handler.HandleKinesisEvent(ctx, e), nil
		}

		var report sensorpipeline.BatchReport
		err := xray.Capture(ctx, "kinesis_to_dynamodb.handle", func(tracedCtx context.Context) error {
			_ = xray.AddAnnotation(tracedCtx, "records", len(e.Records))

			report = handler.HandleKinesisEvent(tracedCtx, e)

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

	handler, err := cfg.Build(context.Background(), "kinesis_to_dynamodb.config")
	if err != nil {
		panic(fmt.Errorf("could not build handler: %w", err))
	}

	lambda.Start(HandleRequest(handler, cfg.Tracing.Enabled))
}
