package main

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
)

type FailureKind int

const (
	FailureNotification FailureKind = iota + 1
	FailureRetrieval
	FailureDecode
	FailureParse
	FailurePublish
)

func (k FailureKind) String() string {
	switch k {
	case FailureNotification:
		return "notification"
	case FailureRetrieval:
		return "retrieval"
	case FailureDecode:
		return "decode"
	case FailureParse:
		return "parse"
	case FailurePublish:
		return "publish"
	}
	return fmt.Sprintf("FailureKind(%d)", int(k))
}

// ProcessingError is the single failure type returned by Processor.Process.
// Callers only ever see the generic 500 response, Kind exists for logs and tests.
type ProcessingError struct {
	Kind FailureKind
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Temporary reports whether a redelivery of the same notification could succeed.
func (e *ProcessingError) Temporary() bool {
	switch e.Kind {
	case FailurePublish:
		return true
	case FailureRetrieval:
		var notFound *ObjectNotFoundError
		if errors.As(e.Err, &notFound) {
			return false
		}
		var aerr awserr.Error
		if errors.As(e.Err, &aerr) && aerr.Code() == errCodeAccessDenied {
			return false
		}
		return true
	}
	return false
}

func failure(kind FailureKind, err error) *ProcessingError {
	return &ProcessingError{Kind: kind, Err: err}
}

// MalformedLogError is returned when the object text is not an audit log envelope.
type MalformedLogError struct {
	Reason string
	Err    error
}

func (e *MalformedLogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed audit log: %s: %v", e.Reason, e.Err)
	}
	return "malformed audit log: " + e.Reason
}

func (e *MalformedLogError) Unwrap() error { return e.Err }

type ObjectNotFoundError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("S3 object not found: s3://%s/%s (%v)", e.Bucket, e.Key, e.Err)
}

func (e *ObjectNotFoundError) Unwrap() error { return e.Err }

const errCodeAccessDenied = "AccessDenied"

// isNotFoundCode matches the codes S3 uses for a missing bucket or key.
func isNotFoundCode(code string) bool {
	switch code {
	case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
