package sensorpipeline

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/exp/slog"
)

// Notifier receives the failed outcomes of a batch.
type Notifier interface {
	Notify(ctx context.Context, failures []Outcome) error
}

type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, shardID string, sequenceNumber string, timestamp int64) error
}

// Handler runs a batch through the Processor and then, when configured,
// reports failures and saves shard checkpoints. Neither step changes the
// batch outcome.
type Handler struct {
	Processor    *Processor
	Notifier     Notifier
	Checkpointer Checkpointer
	Logger       *slog.Logger
}

func (h *Handler) HandleKinesisEvent(ctx context.Context, e KinesisEvent) BatchReport {
	return h.Handle(ctx, e.ToRecords())
}

func (h *Handler) HandleSNSEvent(ctx context.Context, e events.SNSEvent) BatchReport {
	return h.Handle(ctx, SNSRecords(e))
}

func (h *Handler) Handle(ctx context.Context, records []Record) BatchReport {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	result := h.Processor.HandleBatch(ctx, records)

	if failures := result.Failures(); len(failures) > 0 && h.Notifier != nil {
		if err := h.Notifier.Notify(ctx, failures); err != nil {
			logger.Error("Failed to publish failure reports", "failures", len(failures), "error", err)
		}
	}

	if h.Checkpointer != nil {
		timestamp := getTimestamp()
		for shard, sequenceNumber := range result.Checkpoints() {
			if err := h.Checkpointer.SaveCheckpoint(ctx, shard, sequenceNumber, timestamp); err != nil {
				logger.Error("Failed to save checkpoint", "shard", shard, "sequence_number", sequenceNumber, "error", err)
			}
		}
	}

	report := result.Report()
	logger.Info("Processed batch", "records", report.Records, "succeeded", report.Succeeded, "failed", report.Failed)
	return report
}
