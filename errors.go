package sensorpipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrRecordPanic  = errors.New("record handler panicked")
)

// Error kinds reported in logs and failure reports.
const (
	KindDecode   = "decode"
	KindParse    = "parse"
	KindStore    = "store"
	KindCanceled = "canceled"
	KindPanic    = "panic"
	KindUnknown  = "unknown"
)

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record data: %s", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ParseError reports a payload that is not a JSON object with the expected
// fields. Field is empty when the payload itself is malformed.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse reading: %s", e.Err)
	}
	return fmt.Sprintf("parse reading: field %s: %s", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StoreWriteError wraps a failed PutItem. Code is the AWS error code when the
// SDK returned one.
type StoreWriteError struct {
	Table string
	Code  string
	Err   error
}

func (e *StoreWriteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("write to %s: %s", e.Table, e.Err)
	}
	return fmt.Sprintf("write to %s: %s: %s", e.Table, e.Code, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

func newStoreWriteError(table string, err error) error {
	writeErr := &StoreWriteError{Table: table, Err: err}
	if awsErr, ok := err.(awserr.Error); ok {
		writeErr.Code = awsErr.Code()
	}
	return writeErr
}

// ErrorKind classifies a record failure.
func ErrorKind(err error) string {
	var (
		decodeErr *DecodeError
		parseErr  *ParseError
		storeErr  *StoreWriteError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &decodeErr):
		return KindDecode
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &storeErr):
		if storeErr.Code == request.CanceledErrorCode {
			return KindCanceled
		}
		return KindStore
	case errors.Is(err, ErrRecordPanic):
		return KindPanic
	default:
		return KindUnknown
	}
}
