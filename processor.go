package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	successBody = `"Lambda function executed successfully!"`
	errorBody   = `"Error processing event"`
)

type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Processor turns one S3 delivery notification into zero or more SNS
// notifications. The AWS clients it holds are shared across invocations.
type Processor struct {
	Fetcher   ObjectFetcher
	Notifier  Notifier
	TopicArn  string
	EventName string
	Log       *zap.SugaredLogger
}

func NewProcessor(fetcher ObjectFetcher, notifier Notifier, topicArn string, eventName string, log *zap.SugaredLogger) *Processor {
	if eventName == "" {
		eventName = DefaultEventName
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Processor{
		Fetcher:   fetcher,
		Notifier:  notifier,
		TopicArn:  topicArn,
		EventName: eventName,
		Log:       log,
	}
}

// HandleRequest is the invocation boundary. The returned error is always nil,
// failures are reported through the 500 Response.
func (p *Processor) HandleRequest(ctx context.Context, raw json.RawMessage) (Response, error) {
	if err := p.invoke(ctx, raw); err != nil {
		return Response{StatusCode: 500, Body: errorBody}, nil
	}
	return Response{StatusCode: 200, Body: successBody}, nil
}

func (p *Processor) invoke(ctx context.Context, raw json.RawMessage) *ProcessingError {

	p.Log.Infof("Received event: %s", string(raw))

	err := p.handle(ctx, raw)
	if err != nil {
		p.Log.Errorw("Error processing event: "+err.Error(), "kind", err.Kind.String())
	}
	return err
}

func (p *Processor) handle(ctx context.Context, raw json.RawMessage) *ProcessingError {
	var notification events.S3Event
	if err := json.Unmarshal(raw, &notification); err != nil {
		return failure(FailureNotification, errors.Wrap(err, "decoding S3 event"))
	}
	return p.process(ctx, notification)
}

// Process runs the pipeline for the first record of the notification.
func (p *Processor) Process(ctx context.Context, notification events.S3Event) error {
	if err := p.process(ctx, notification); err != nil {
		return err
	}
	return nil
}

func (p *Processor) process(ctx context.Context, notification events.S3Event) *ProcessingError {

	if len(notification.Records) == 0 {
		return failure(FailureNotification, errors.New("S3 event has no records"))
	}
	if extra := len(notification.Records) - 1; extra > 0 {
		p.Log.Debugf("Ignoring %d additional S3 event records", extra)
	}

	bucket := notification.Records[0].S3.Bucket.Name
	key := notification.Records[0].S3.Object.Key

	raw, err := p.Fetcher.Fetch(ctx, bucket, key)
	if err != nil {
		return failure(FailureRetrieval, err)
	}

	text, err := ExtractText(raw, p.Log)
	if err != nil {
		return failure(FailureDecode, err)
	}

	records, err := ParseEnvelope(text, p.Log)
	if err != nil {
		return failure(FailureParse, err)
	}

	matched := FilterRecords(records, p.EventName)
	p.Log.Debugf("s3://%s/%s: %d of %d records are %s", bucket, key, len(matched), len(records), p.EventName)

	subject := NotificationSubject(p.EventName)
	for _, record := range matched {
		message, err := NotificationMessage(p.EventName, record)
		if err != nil {
			return failure(FailureParse, err)
		}
		messageID, err := p.Notifier.Publish(ctx, p.TopicArn, subject, message)
		if err != nil {
			return failure(FailurePublish, err)
		}
		p.Log.Infow(p.EventName+" event notification sent.", "messageId", messageID)
	}

	return nil
}
