package main

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/pkg/errors"
)

type Notifier interface {
	Publish(ctx context.Context, topicArn string, subject string, message string) (string, error)
}

type SNSNotifier struct {
	Client snsiface.SNSAPI
}

func NewSNSNotifier(client snsiface.SNSAPI) *SNSNotifier {
	return &SNSNotifier{Client: client}
}

// Publish returns the SNS message ID.
func (n *SNSNotifier) Publish(ctx context.Context, topicArn string, subject string, message string) (string, error) {

	result, err := n.Client.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return "", errors.Wrapf(err, "SNS Publish Error: %s", topicArn)
	}

	return aws.StringValue(result.MessageId), nil
}
