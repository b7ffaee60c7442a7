package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// pollErrorWait is the pause after a failed poll before trying again.
const pollErrorWait = 3 * time.Second

// QueueNotFoundError is returned when the configured queue does not exist.
type QueueNotFoundError struct {
	QueueName string
	Err       error
}

func (e *QueueNotFoundError) Error() string {
	return fmt.Sprintf("Unable to find queue %q.", e.QueueName)
}

func (e *QueueNotFoundError) Unwrap() error { return e.Err }

type SQSPoller struct {
	Client   sqsiface.SQSAPI
	Settings sqsSettings
	Log      *zap.SugaredLogger

	// ErrorWait overrides pollErrorWait when non-zero.
	ErrorWait time.Duration

	queueURL *string
}

func (s *SQSPoller) errorWait() time.Duration {
	if s.ErrorWait > 0 {
		return s.ErrorWait
	}
	return pollErrorWait
}

func (s *SQSPoller) log() *zap.SugaredLogger {
	if s.Log == nil {
		return zap.NewNop().Sugar()
	}
	return s.Log
}

func (s *SQSPoller) resolveQueueURL(ctx context.Context) (*string, error) {

	if s.queueURL != nil {
		return s.queueURL, nil
	}

	sqsUrl, err := s.Client.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(s.Settings.queueName),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == sqs.ErrCodeQueueDoesNotExist {
			return nil, &QueueNotFoundError{QueueName: s.Settings.queueName, Err: err}
		}
		return nil, errors.Wrapf(err, "Unable to poll queue %q", s.Settings.queueName)
	}
	s.queueURL = sqsUrl.QueueUrl
	return s.queueURL, nil
}

func (s *SQSPoller) Poll(ctx context.Context) ([]*S3EventMsg, error) {

	queueURL, err := s.resolveQueueURL(ctx)
	if err != nil {
		return nil, err
	}

	s.log().Debugf("Polling SQS: %s", s.Settings.queueName)

	result, err := s.Client.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
		VisibilityTimeout: aws.Int64(s.Settings.visibilityTimeout),
		QueueUrl:          queueURL,
		AttributeNames: aws.StringSlice([]string{
			"SentTimestamp",
		}),
		MaxNumberOfMessages: aws.Int64(s.Settings.maxMessages),
		WaitTimeSeconds:     aws.Int64(s.Settings.pollTimeout),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to receive message from queue %q", s.Settings.queueName)
	}

	s.log().Debugf("SQS received %d messages.", len(result.Messages))
	return sqsDecodeMap(result.Messages, sqsDecode), nil
}

func (s *SQSPoller) Delete(ctx context.Context, receiptHandle string) error {

	queueURL, err := s.resolveQueueURL(ctx)
	if err != nil {
		return err
	}

	_, err = s.Client.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      queueURL,
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return errors.Wrap(err, "SQS Delete Error")
	}
	return nil
}

func sqsDecodeMap(rmsgs []*sqs.Message, f func(*sqs.Message) *S3EventMsg) []*S3EventMsg {
	m := make([]*S3EventMsg, len(rmsgs))
	for i, v := range rmsgs {
		m[i] = f(v)
	}
	return m
}

// sqsDecode keeps the body verbatim, the processor decodes and logs it.
func sqsDecode(r *sqs.Message) *S3EventMsg {
	return &S3EventMsg{
		Body:          json.RawMessage(aws.StringValue(r.Body)),
		ReceiptHandle: aws.StringValue(r.ReceiptHandle),
		MessageID:     aws.StringValue(r.MessageId),
	}
}

// RunSQS hands each polled message to the processor as its own invocation.
// emptyPolls of zero polls until ctx is cancelled. A missing queue ends the
// loop with an error, other poll failures are retried after a pause.
func RunSQS(ctx context.Context, poller *SQSPoller, processor *Processor, emptyPolls int, deleteProcessed bool) error {

	log := processor.Log
	pollCount := emptyPolls
	for emptyPolls == 0 || pollCount > 0 {

		if ctx.Err() != nil {
			return nil
		}

		log.Debugf("pollCount=%d", pollCount)

		msgs, err := poller.Poll(ctx)
		pollCount--
		if err != nil {
			var notFound *QueueNotFoundError
			if errors.As(err, &notFound) {
				return err
			}
			log.Errorf("Failed to poll SQS: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(poller.errorWait()):
			}
			continue
		}

		for _, msg := range msgs {
			pollCount = emptyPolls
			if err := processor.invoke(ctx, msg.Body); err != nil && err.Temporary() {
				log.Infof("Leaving SQS message %s for redelivery", msg.MessageID)
				continue
			}
			if !deleteProcessed {
				continue
			}
			if err := poller.Delete(ctx, msg.ReceiptHandle); err != nil {
				log.Errorf("%v", err)
			}
		}
	}
	return nil
}
