package sensorpipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxConcurrency = 32

// ReadingWriter persists one reading. *ReadingStore implements it.
type ReadingWriter interface {
	Put(ctx context.Context, reading SensorReading) (*dynamodb.PutItemOutput, error)
}

type Processor struct {
	Store  ReadingWriter
	Logger *slog.Logger

	// MaxConcurrency caps in-flight writes per batch. Zero or less starts
	// every record at once.
	MaxConcurrency int
}

// Outcome is the result of one record. Err is nil on success.
type Outcome struct {
	Record   Record
	Reading  *SensorReading
	Response *dynamodb.PutItemOutput
	Err      error
}

func NewProcessor(store ReadingWriter, logger *slog.Logger, maxConcurrency int) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Store:          store,
		Logger:         logger,
		MaxConcurrency: maxConcurrency,
	}
}

// ProcessRecord decodes, parses and writes one record. Failures, panics
// included, end up in the returned Outcome.
func (p *Processor) ProcessRecord(ctx context.Context, record Record) (out Outcome) {
	out.Record = record

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%w: %v", ErrRecordPanic, r)
		}
		if out.Err != nil {
			p.logger().Error("Failed to process record",
				"event_id", record.EventID,
				"sequence_number", record.SequenceNumber,
				"kind", ErrorKind(out.Err),
				"error", out.Err)
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	payload := []byte(record.Data)
	if record.Encoding == EncodingBase64 {
		decoded, err := DecodeRecordData(record.Data)
		if err != nil {
			out.Err = err
			return out
		}
		payload = decoded
	}

	reading, err := ParseReading(payload)
	if err != nil {
		out.Err = err
		return out
	}
	out.Reading = &reading

	resp, err := p.Store.Put(ctx, reading)
	if err != nil {
		out.Err = err
		return out
	}
	out.Response = resp

	p.logger().Info("Stored sensor reading",
		"event_id", record.EventID,
		"sensor_id", reading.SensorID,
		"current_time", reading.CurrentTime.String(),
		"consumed_capacity", consumedCapacity(resp))
	return out
}

// HandleBatch processes every record concurrently and returns once all of
// them have settled. Outcomes are in input order.
func (p *Processor) HandleBatch(ctx context.Context, records []Record) *BatchResult {
	result := &BatchResult{Outcomes: make([]Outcome, len(records))}

	var g errgroup.Group
	if p.MaxConcurrency > 0 {
		g.SetLimit(p.MaxConcurrency)
	}

	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			result.Outcomes[i] = p.ProcessRecord(ctx, record)
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func consumedCapacity(resp *dynamodb.PutItemOutput) float64 {
	if resp == nil || resp.ConsumedCapacity == nil {
		return 0
	}
	return aws.Float64Value(resp.ConsumedCapacity.CapacityUnits)
}

type BatchResult struct {
	Outcomes []Outcome
}

// BatchReport is what the Lambda returns to its invoker.
type BatchReport struct {
	Records   int `json:"records"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func (r *BatchResult) Failures() []Outcome {
	var failures []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failures = append(failures, o)
		}
	}
	return failures
}

func (r *BatchResult) Report() BatchReport {
	failed := len(r.Failures())
	return BatchReport{
		Records:   len(r.Outcomes),
		Succeeded: len(r.Outcomes) - failed,
		Failed:    failed,
	}
}

// Err joins every record failure, or returns nil.
func (r *BatchResult) Err() error {
	var errs []error
	for _, o := range r.Failures() {
		errs = append(errs, fmt.Errorf("record %s: %w", o.Record.EventID, o.Err))
	}
	return errors.Join(errs...)
}

// Checkpoints returns the highest handled sequence number per shard.
// Records that never ran because the context ended are not counted.
func (r *BatchResult) Checkpoints() map[string]string {
	checkpoints := make(map[string]string)
	for _, o := range r.Outcomes {
		if o.Record.ShardID == "" || o.Record.SequenceNumber == "" || ErrorKind(o.Err) == KindCanceled {
			continue
		}
		if current, ok := checkpoints[o.Record.ShardID]; !ok || laterSequence(o.Record.SequenceNumber, current) {
			checkpoints[o.Record.ShardID] = o.Record.SequenceNumber
		}
	}
	return checkpoints
}
