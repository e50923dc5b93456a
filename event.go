package sensorpipeline

import (
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// KinesisEvent is the Lambda Kinesis trigger payload. Unlike
// events.KinesisEvent, record data stays base64 text so that one malformed
// record fails on its own instead of failing the whole invocation.
type KinesisEvent struct {
	Records []KinesisEventRecord `json:"Records"`
}

type KinesisEventRecord struct {
	AwsRegion         string        `json:"awsRegion"`
	EventID           string        `json:"eventID"`
	EventName         string        `json:"eventName"`
	EventSource       string        `json:"eventSource"`
	EventSourceArn    string        `json:"eventSourceARN"`
	EventVersion      string        `json:"eventVersion"`
	InvokeIdentityArn string        `json:"invokeIdentityArn"`
	Kinesis           KinesisRecord `json:"kinesis"`
}

type KinesisRecord struct {
	ApproximateArrivalTimestamp events.SecondsEpochTime `json:"approximateArrivalTimestamp"`
	Data                        string                  `json:"data"`
	EncryptionType              string                  `json:"encryptionType,omitempty"`
	PartitionKey                string                  `json:"partitionKey"`
	SequenceNumber              string                  `json:"sequenceNumber"`
	KinesisSchemaVersion        string                  `json:"kinesisSchemaVersion"`
}

type Encoding int

const (
	EncodingBase64 Encoding = iota
	EncodingNone
)

// Record is one inbound message as the Processor sees it.
type Record struct {
	EventID        string
	ShardID        string
	PartitionKey   string
	SequenceNumber string
	Encoding       Encoding
	Data           string
}

// ToRecords converts the trigger payload, preserving order.
func (e KinesisEvent) ToRecords() []Record {
	records := make([]Record, 0, len(e.Records))
	for _, r := range e.Records {
		records = append(records, Record{
			EventID:        r.EventID,
			ShardID:        shardID(r.EventID),
			PartitionKey:   r.Kinesis.PartitionKey,
			SequenceNumber: r.Kinesis.SequenceNumber,
			Encoding:       EncodingBase64,
			Data:           r.Kinesis.Data,
		})
	}
	return records
}

// SNSRecords converts SNS notifications whose message is the JSON payload.
func SNSRecords(e events.SNSEvent) []Record {
	records := make([]Record, 0, len(e.Records))
	for _, r := range e.Records {
		records = append(records, Record{
			EventID:      r.SNS.MessageID,
			PartitionKey: r.SNS.TopicArn,
			Encoding:     EncodingNone,
			Data:         r.SNS.Message,
		})
	}
	return records
}

// eventID is "shardId-000000000000:<sequence number>"
func shardID(eventID string) string {
	shard, _, found := strings.Cut(eventID, ":")
	if !found {
		return ""
	}
	return shard
}

// laterSequence reports whether Kinesis sequence number a comes after b.
// Sequence numbers are decimal strings too long for any integer type.
func laterSequence(a, b string) bool {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}
