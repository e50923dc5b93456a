package sensorpipeline

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

const DefaultTableName = "SensorData"

const (
	attrSensorID    = "SensorId"
	attrCurrentTime = "CurrentTime"
	attrTemperature = "Temperature"
)

// SensorReading is one decoded payload. CurrentTime and Temperature hold the
// rendered number text that is written to the table.
type SensorReading struct {
	SensorID    string
	CurrentTime json.Number
	Temperature json.Number
}

type readingPayload struct {
	SensorID    *string      `json:"sensor_id"`
	CurrentTime *json.Number `json:"current_time"`
	Temperature *json.Number `json:"temperature"`
}

// DecodeRecordData decodes the base64 body of a stream record.
func DecodeRecordData(data string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return decoded, nil
}

// ParseReading parses a JSON payload of the form
// {"sensor_id": "...", "current_time": 123, "temperature": 21.5}.
func ParseReading(data []byte) (SensorReading, error) {
	var payload readingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return SensorReading{}, &ParseError{Field: typeErr.Field, Err: err}
		}
		return SensorReading{}, &ParseError{Err: err}
	}

	if payload.SensorID == nil {
		return SensorReading{}, &ParseError{Field: "sensor_id", Err: ErrMissingField}
	}

	currentTime, err := renderNumber("current_time", payload.CurrentTime)
	if err != nil {
		return SensorReading{}, err
	}
	temperature, err := renderNumber("temperature", payload.Temperature)
	if err != nil {
		return SensorReading{}, err
	}

	return SensorReading{
		SensorID:    *payload.SensorID,
		CurrentTime: currentTime,
		Temperature: temperature,
	}, nil
}

// Item renders the reading as a SensorData row.
func (r SensorReading) Item() map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		attrSensorID: {
			S: aws.String(r.SensorID),
		},
		attrCurrentTime: {
			N: aws.String(r.CurrentTime.String()),
		},
		attrTemperature: {
			N: aws.String(r.Temperature.String()),
		},
	}
}

func renderNumber(field string, n *json.Number) (json.Number, error) {
	if n == nil {
		return "", &ParseError{Field: field, Err: ErrMissingField}
	}
	s, err := FormatNumber(*n)
	if err != nil {
		return "", &ParseError{Field: field, Err: err}
	}
	return json.Number(s), nil
}

// FormatNumber renders a JSON number the way Number.prototype.toString does
// for finite values. Integers that fit in an int64 keep every digit.
func FormatNumber(n json.Number) (string, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}

	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return "", fmt.Errorf("invalid number %q: %w", string(n), err)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("number %q is out of range", string(n))
	}
	if f == 0 {
		return "0", nil
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		// 1e-07 -> 1e-7
		mantissa, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
		return mantissa + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0"), nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
