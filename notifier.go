package sensorpipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
)

// FailureReport is the SQS message body sent for each failed record.
type FailureReport struct {
	EventID        string `json:"eventId"`
	PartitionKey   string `json:"partitionKey"`
	SequenceNumber string `json:"sequenceNumber"`
	ErrorKind      string `json:"errorKind"`
	Error          string `json:"error"`
	Data           string `json:"data"`
}

// FailureNotifier publishes failed records to SQS queues. Queue URLs are
// looked up once and reused.
type FailureNotifier struct {
	QueueNames []string
	Sqs        sqsiface.SQSAPI

	mu        sync.Mutex
	queueURLs map[string]string
}

func NewFailureNotifier(svc sqsiface.SQSAPI, queueNames []string) *FailureNotifier {
	return &FailureNotifier{
		QueueNames: queueNames,
		Sqs:        svc,
		queueURLs:  make(map[string]string),
	}
}

func NewFailureReport(o Outcome) FailureReport {
	report := FailureReport{
		EventID:        o.Record.EventID,
		PartitionKey:   o.Record.PartitionKey,
		SequenceNumber: o.Record.SequenceNumber,
		ErrorKind:      ErrorKind(o.Err),
		Data:           o.Record.Data,
	}
	if o.Err != nil {
		report.Error = o.Err.Error()
	}
	return report
}

// Notify sends one report per failure to every queue. It keeps going after
// an error and returns all of them joined.
func (n *FailureNotifier) Notify(ctx context.Context, failures []Outcome) error {
	var errs []error
	for _, o := range failures {
		body, err := json.Marshal(NewFailureReport(o))
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, queueName := range n.QueueNames {
			if err := n.send(ctx, queueName, o.Record, string(body)); err != nil {
				errs = append(errs, fmt.Errorf("queue %s: record %s: %w", queueName, o.Record.EventID, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (n *FailureNotifier) send(ctx context.Context, queueName string, record Record, body string) error {
	queueURL, err := n.queueURL(ctx, queueName)
	if err != nil {
		return err
	}

	sendMessage := &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(body),
	}

	if strings.HasSuffix(queueName, ".fifo") {
		groupID := record.PartitionKey
		if groupID == "" {
			groupID = "unpartitioned"
		}
		sendMessage.MessageGroupId = aws.String(groupID)
		sendMessage.MessageDeduplicationId = aws.String(record.EventID)
	}

	_, err = n.Sqs.SendMessageWithContext(ctx, sendMessage)
	return err
}

func (n *FailureNotifier) queueURL(ctx context.Context, queueName string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.queueURLs == nil {
		n.queueURLs = make(map[string]string)
	}
	if url, ok := n.queueURLs[queueName]; ok {
		return url, nil
	}

	out, err := n.Sqs.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})
	if err != nil {
		return "", err
	}

	url := aws.StringValue(out.QueueUrl)
	n.queueURLs[queueName] = url
	return url, nil
}
