package sensorpipeline

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    SensorReading
	}{
		{
			name:    "integer time and fractional temperature",
			payload: `{"sensor_id": "sensor-1", "current_time": 1479499740, "temperature": 21.5}`,
			want:    SensorReading{SensorID: "sensor-1", CurrentTime: "1479499740", Temperature: "21.5"},
		},
		{
			name:    "trailing zeros are dropped",
			payload: `{"sensor_id": "s", "current_time": 10.000, "temperature": 21.50}`,
			want:    SensorReading{SensorID: "s", CurrentTime: "10", Temperature: "21.5"},
		},
		{
			name:    "negative temperature",
			payload: `{"sensor_id": "freezer", "current_time": 1, "temperature": -18.25}`,
			want:    SensorReading{SensorID: "freezer", CurrentTime: "1", Temperature: "-18.25"},
		},
		{
			name:    "exponent is expanded",
			payload: `{"sensor_id": "s", "current_time": 1.5e3, "temperature": 2E1}`,
			want:    SensorReading{SensorID: "s", CurrentTime: "1500", Temperature: "20"},
		},
		{
			name:    "extra fields are ignored",
			payload: `{"sensor_id": "s", "current_time": 2, "temperature": 3, "humidity": 40}`,
			want:    SensorReading{SensorID: "s", CurrentTime: "2", Temperature: "3"},
		},
		{
			name:    "empty sensor id is not validated",
			payload: `{"sensor_id": "", "current_time": 2, "temperature": 3}`,
			want:    SensorReading{SensorID: "", CurrentTime: "2", Temperature: "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReading([]byte(tt.payload))
			assert.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReading_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
		missing bool
	}{
		{name: "not json", payload: `sensor-1,123,21.5`},
		{name: "truncated", payload: `{"sensor_id": "s"`},
		{name: "array", payload: `[1, 2, 3]`},
		{name: "null payload", payload: `null`, field: "sensor_id", missing: true},
		{name: "missing sensor id", payload: `{"current_time": 1, "temperature": 2}`, field: "sensor_id", missing: true},
		{name: "missing time", payload: `{"sensor_id": "s", "temperature": 2}`, field: "current_time", missing: true},
		{name: "missing temperature", payload: `{"sensor_id": "s", "current_time": 1}`, field: "temperature", missing: true},
		{name: "null temperature", payload: `{"sensor_id": "s", "current_time": 1, "temperature": null}`, field: "temperature", missing: true},
		{name: "numeric sensor id", payload: `{"sensor_id": 7, "current_time": 1, "temperature": 2}`, field: "sensor_id"},
		{name: "boolean temperature", payload: `{"sensor_id": "s", "current_time": 1, "temperature": true}`, field: "temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReading([]byte(tt.payload))
			require.Error(t, err)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "expected ParseError, got %T", err)
			assert.Equal(t, tt.field, parseErr.Field)
			assert.Equal(t, tt.missing, errors.Is(err, ErrMissingField))
			assert.Equal(t, KindParse, ErrorKind(err))
		})
	}
}

func TestDecodeRecordData(t *testing.T) {
	payload := `{"sensor_id":"s","current_time":1,"temperature":2}`

	decoded, err := DecodeRecordData(base64.StdEncoding.EncodeToString([]byte(payload)))
	assert.Nil(t, err)
	assert.Equal(t, payload, string(decoded))

	_, err = DecodeRecordData("not base64!")
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, KindDecode, ErrorKind(err))
}

func TestFormatNumber(t *testing.T) {
	tests := map[string]string{
		"0":                     "0",
		"-0":                    "0",
		"-0.0":                  "0",
		"42":                    "42",
		"9007199254740993":      "9007199254740993",
		"21.5":                  "21.5",
		"0.1":                   "0.1",
		"1e21":                  "1e+21",
		"123456789e20":          "1.23456789e+28",
		"0.000001":              "0.000001",
		"0.0000001":             "1e-7",
		"-2.5e-8":               "-2.5e-8",
		"100000000000000000000": "100000000000000000000",
	}

	for in, want := range tests {
		got, err := FormatNumber(json.Number(in))
		assert.Nil(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := FormatNumber("1e400")
	assert.NotNil(t, err)
	_, err = FormatNumber("abc")
	assert.NotNil(t, err)
}

func TestSensorReadingItem(t *testing.T) {
	reading := SensorReading{SensorID: "sensor-1", CurrentTime: "1479499740", Temperature: "21.5"}

	item := reading.Item()
	assert.Len(t, item, 3)
	assert.Equal(t, "sensor-1", aws.StringValue(item["SensorId"].S))
	assert.Nil(t, item["SensorId"].N)
	assert.Equal(t, "1479499740", aws.StringValue(item["CurrentTime"].N))
	assert.Nil(t, item["CurrentTime"].S)
	assert.Equal(t, "21.5", aws.StringValue(item["Temperature"].N))
}
