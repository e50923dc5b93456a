package sensorpipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"golang.org/x/exp/slog"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeDynamoDB struct {
	dynamodbiface.DynamoDBAPI

	mu        sync.Mutex
	puts      []*dynamodb.PutItemInput
	putErr    error
	queries   []*dynamodb.QueryInput
	pages     []*dynamodb.QueryOutput
	getOutput *dynamodb.GetItemOutput
	createErr error
	waited    bool
}

func (f *fakeDynamoDB) PutItemWithContext(_ aws.Context, input *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.puts = append(f.puts, input)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{
		ConsumedCapacity: &dynamodb.ConsumedCapacity{
			TableName:     input.TableName,
			CapacityUnits: aws.Float64(1),
		},
	}, nil
}

func (f *fakeDynamoDB) QueryWithContext(_ aws.Context, input *dynamodb.QueryInput, _ ...request.Option) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := *input
	f.queries = append(f.queries, &copied)
	if len(f.pages) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeDynamoDB) GetItemWithContext(_ aws.Context, _ *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	if f.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getOutput, nil
}

func (f *fakeDynamoDB) CreateTableWithContext(_ aws.Context, _ *dynamodb.CreateTableInput, _ ...request.Option) (*dynamodb.CreateTableOutput, error) {
	return &dynamodb.CreateTableOutput{}, f.createErr
}

func (f *fakeDynamoDB) WaitUntilTableExistsWithContext(_ aws.Context, _ *dynamodb.DescribeTableInput, _ ...request.WaiterOption) error {
	f.waited = true
	return nil
}

func (f *fakeDynamoDB) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

// fakeWriter lets a test hook into every Put.
type fakeWriter struct {
	mu      sync.Mutex
	written []SensorReading
	put     func(ctx context.Context, reading SensorReading) error
}

func (w *fakeWriter) Put(ctx context.Context, reading SensorReading) (*dynamodb.PutItemOutput, error) {
	if w.put != nil {
		if err := w.put(ctx, reading); err != nil {
			return nil, err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, reading)
	return &dynamodb.PutItemOutput{}, nil
}

func (w *fakeWriter) readings() []SensorReading {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]SensorReading(nil), w.written...)
}

type fakeSQS struct {
	sqsiface.SQSAPI

	mu           sync.Mutex
	urlLookups   map[string]int
	sent         []*sqs.SendMessageInput
	sendErr      error
	missingQueue string
}

func (f *fakeSQS) GetQueueUrlWithContext(_ aws.Context, input *sqs.GetQueueUrlInput, _ ...request.Option) (*sqs.GetQueueUrlOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.StringValue(input.QueueName)
	if name == f.missingQueue {
		return nil, fmt.Errorf("queue %s does not exist", name)
	}
	if f.urlLookups == nil {
		f.urlLookups = make(map[string]int)
	}
	f.urlLookups[name]++
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("http://localhost:4566/000000000000/" + name)}, nil
}

func (f *fakeSQS) SendMessageWithContext(_ aws.Context, input *sqs.SendMessageInput, _ ...request.Option) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, input)
	return &sqs.SendMessageOutput{MessageId: aws.String(fmt.Sprintf("msg-%d", len(f.sent)))}, nil
}

func kinesisRecord(shard string, sequence string, payload string) Record {
	return Record{
		EventID:        shard + ":" + sequence,
		ShardID:        shard,
		PartitionKey:   "partition-" + sequence,
		SequenceNumber: sequence,
		Encoding:       EncodingBase64,
		Data:           base64.StdEncoding.EncodeToString([]byte(payload)),
	}
}

func readingPayloadJSON(sensorID string, currentTime int64, temperature float64) string {
	return fmt.Sprintf(`{"sensor_id": %q, "current_time": %d, "temperature": %v}`, sensorID, currentTime, temperature)
}
