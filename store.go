package sensorpipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

type ReadingStore struct {
	DB    dynamodbiface.DynamoDBAPI
	Table string
}

const (
	TimeStart = 0
	TimeEnd   = -1
	CountAll  = -1
)

// StoredReading is a SensorData row as read back from the table.
type StoredReading struct {
	SensorID    string  `dynamodbav:"SensorId"`
	CurrentTime float64 `dynamodbav:"CurrentTime"`
	Temperature float64 `dynamodbav:"Temperature"`
}

// NewReadingStore returns a ReadingStore writing to table
func NewReadingStore(db dynamodbiface.DynamoDBAPI, table string) *ReadingStore {
	return &ReadingStore{
		DB:    db,
		Table: table,
	}
}

// Put writes one reading. The table is keyed by SensorId and CurrentTime, so a
// second reading for the same sensor and time replaces the first.
func (s *ReadingStore) Put(ctx context.Context, reading SensorReading) (*dynamodb.PutItemOutput, error) {
	input := &dynamodb.PutItemInput{
		TableName:              aws.String(s.Table),
		Item:                   reading.Item(),
		ReturnConsumedCapacity: aws.String(dynamodb.ReturnConsumedCapacityTotal),
	}

	out, err := s.DB.PutItemWithContext(ctx, input)
	if err != nil {
		return nil, newStoreWriteError(s.Table, err)
	}
	return out, nil
}

// GetReading returns the row for sensorID at currentTime, or nil if there is none.
func (s *ReadingStore) GetReading(ctx context.Context, sensorID string, currentTime json.Number) (*StoredReading, error) {
	out, err := s.DB.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]*dynamodb.AttributeValue{
			attrSensorID: {
				S: aws.String(sensorID),
			},
			attrCurrentTime: {
				N: aws.String(currentTime.String()),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get reading %s@%s: %w", sensorID, currentTime, err)
	}

	if len(out.Item) == 0 {
		return nil, nil
	}

	var reading StoredReading
	if err := dynamodbattribute.UnmarshalMap(out.Item, &reading); err != nil {
		return nil, fmt.Errorf("unmarshal reading %s@%s: %w", sensorID, currentTime, err)
	}
	return &reading, nil
}

// ReadSensorForward reads a sensor's readings in time order starting at from.
// Query is inclusive of from.
func (s *ReadingStore) ReadSensorForward(ctx context.Context, sensorID string, from int64, count int64) ([]StoredReading, error) {
	input := s.sensorQuery(sensorID, from, TimeStart, ">=", count)
	input.ScanIndexForward = aws.Bool(true)
	return s.queryReadings(ctx, input)
}

// ReadSensorBackward reads a sensor's readings newest first starting at from.
// Query is inclusive of from.
func (s *ReadingStore) ReadSensorBackward(ctx context.Context, sensorID string, from int64, count int64) ([]StoredReading, error) {
	input := s.sensorQuery(sensorID, from, TimeEnd, "<=", count)
	input.ScanIndexForward = aws.Bool(false)
	return s.queryReadings(ctx, input)
}

func (s *ReadingStore) sensorQuery(sensorID string, from int64, unbounded int64, op string, count int64) *dynamodb.QueryInput {
	keyCondition := "#sensor = :s"
	expressionNames := map[string]*string{
		"#sensor": aws.String(attrSensorID),
	}
	expressionValues := map[string]*dynamodb.AttributeValue{
		":s": {
			S: aws.String(sensorID),
		},
	}

	if from != unbounded {
		keyCondition += " AND #time " + op + " :t"
		expressionNames["#time"] = aws.String(attrCurrentTime)
		expressionValues[":t"] = &dynamodb.AttributeValue{
			N: aws.String(strconv.FormatInt(from, 10)),
		}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.Table),
		ConsistentRead:            aws.Bool(true),
		KeyConditionExpression:    aws.String(keyCondition),
		ExpressionAttributeNames:  expressionNames,
		ExpressionAttributeValues: expressionValues,
	}

	if count != CountAll {
		input.Limit = aws.Int64(count)
	}
	return input
}

func (s *ReadingStore) queryReadings(ctx context.Context, queryInput *dynamodb.QueryInput) ([]StoredReading, error) {
	queryFunc := func(lastKey map[string]*dynamodb.AttributeValue) ([]StoredReading, map[string]*dynamodb.AttributeValue, error) {
		queryInput.ExclusiveStartKey = lastKey
		result, err := s.DB.QueryWithContext(ctx, queryInput)
		if err != nil {
			return nil, nil, err
		}

		var readings []StoredReading
		if err := dynamodbattribute.UnmarshalListOfMaps(result.Items, &readings); err != nil {
			return nil, nil, err
		}

		return readings, result.LastEvaluatedKey, nil
	}

	var res []StoredReading
	results, lastKey, err := queryFunc(nil)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}

	for {
		res = append(res, results...)

		if len(lastKey) == 0 || (queryInput.Limit != nil && int64(len(res)) >= *queryInput.Limit) {
			break
		}

		if results, lastKey, err = queryFunc(lastKey); err != nil {
			return nil, fmt.Errorf("query %s: %w", s.Table, err)
		}
	}

	if queryInput.Limit != nil && int64(len(res)) > *queryInput.Limit {
		res = res[:*queryInput.Limit]
	}
	return res, nil
}

// EnsureTable creates the table with its SensorId/CurrentTime key if it does
// not exist yet and waits until it is active.
func (s *ReadingStore) EnsureTable(ctx context.Context) error {
	_, err := s.DB.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.Table),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String(attrSensorID),
				AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
			},
			{
				AttributeName: aws.String(attrCurrentTime),
				AttributeType: aws.String(dynamodb.ScalarAttributeTypeN),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String(attrSensorID),
				KeyType:       aws.String(dynamodb.KeyTypeHash),
			},
			{
				AttributeName: aws.String(attrCurrentTime),
				KeyType:       aws.String(dynamodb.KeyTypeRange),
			},
		},
		BillingMode: aws.String(dynamodb.BillingModePayPerRequest),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); !ok || awsErr.Code() != dynamodb.ErrCodeResourceInUseException {
			return fmt.Errorf("create table %s: %w", s.Table, err)
		}
	}

	if err := s.DB.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.Table),
	}); err != nil {
		return fmt.Errorf("wait for table %s: %w", s.Table, err)
	}
	return nil
}
