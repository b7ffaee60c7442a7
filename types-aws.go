package main

import (
	"encoding/json"
)

// S3EventMsg is an S3 event notification received through SQS.
type S3EventMsg struct {
	Body          json.RawMessage
	ReceiptHandle string
	MessageID     string
}

type sqsSettings struct {
	queueName         string
	pollTimeout       int64
	maxMessages       int64
	visibilityTimeout int64
}
