package main

import (
	"context"
	"flag"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/jamiealquiza/envy"
	"github.com/pkg/errors"
)

type config struct {
	topicArn             *string
	eventName            *string
	region               *string
	logVerbose           *bool
	sqsName              *string
	sqsRegion            *string
	sqsPollTimeout       *int64
	sqsPollMaxMessages   *int64
	sqsVisibilityTimeout *int64
	emptyPolls           *int
	sqsDelete            *bool
}

func validateConfig(conf config) error {

	if *conf.topicArn == "" {
		return errors.New("SNS topic ARN is required (-topic-arn or SNS_TOPIC_ARN)")
	}
	if *conf.eventName == "" {
		return errors.New("event name must not be empty")
	}
	if *conf.sqsName == "" {
		return nil
	}
	if *conf.sqsPollTimeout < 1 || *conf.sqsPollTimeout > 20 {
		return errors.Errorf("polltimeout must be 1-20, got %d", *conf.sqsPollTimeout)
	}
	if *conf.sqsPollMaxMessages < 1 || *conf.sqsPollMaxMessages > 10 {
		return errors.Errorf("pollmessages must be 1-10, got %d", *conf.sqsPollMaxMessages)
	}
	if *conf.sqsVisibilityTimeout < 0 {
		return errors.Errorf("sqsprocessingtime must not be negative, got %d", *conf.sqsVisibilityTimeout)
	}
	if *conf.emptyPolls < 0 {
		return errors.Errorf("emptypolls must not be negative, got %d", *conf.emptyPolls)
	}
	return nil
}

func newSession(region string) (*session.Session, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "AWS Session Error")
	}
	return sess, nil
}

func main() {

	conf := config{
		flag.String("topic-arn", os.Getenv("SNS_TOPIC_ARN"), "ARN of the SNS topic to notify [MANDATORY]"),
		flag.String("event-name", DefaultEventName, "CloudTrail eventName to notify about"),
		flag.String("region", "", "AWS region of the S3 bucket and SNS topic, defaults to the environment"),
		flag.Bool("verbose", false, "Show detailed information during run"),
		flag.String("sqs", "", "Poll this SQS queue for S3 event notifications instead of running as a Lambda function"),
		flag.String("sqsregion", "", "AWS region of SQS queue, defaults to -region"),
		flag.Int64("polltimeout", 10, "SQS slow poll timeout, 1-20"),
		flag.Int64("pollmessages", 10, "SQS maximum messages per poll, 1-10"),
		flag.Int64("sqsprocessingtime", 300, "SQS visibility timeout"),
		flag.Int("emptypolls", 0, "How many consecutive times to poll SQS and receive zero messages before exiting, 0 polls forever"),
		flag.Bool("deletesqs", true, "Delete messages from SQS after processing"),
	}
	envy.Parse("CTNOTIFY")
	flag.Parse()

	logInit(conf)
	defer logger.Sync()

	if err := validateConfig(conf); err != nil {
		logger.Errorf("%v", err)
		flag.Usage()
		os.Exit(1)
	}

	sess, err := newSession(*conf.region)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	processor := NewProcessor(
		NewS3Fetcher(s3.New(sess), logger),
		NewSNSNotifier(sns.New(sess)),
		*conf.topicArn,
		*conf.eventName,
		logger,
	)

	if *conf.sqsName == "" {
		logger.Debugf("Starting Lambda handler for %s events", *conf.eventName)
		lambda.Start(processor.HandleRequest)
		return
	}

	sqsSess := sess
	if *conf.sqsRegion != "" {
		sqsSess = sess.Copy(aws.NewConfig().WithRegion(*conf.sqsRegion))
	}

	poller := &SQSPoller{
		Client: sqs.New(sqsSess),
		Log:    logger,
		Settings: sqsSettings{
			queueName:         *conf.sqsName,
			pollTimeout:       *conf.sqsPollTimeout,
			maxMessages:       *conf.sqsPollMaxMessages,
			visibilityTimeout: *conf.sqsVisibilityTimeout,
		},
	}

	ctx, cancel := gracefulStop(context.Background())
	defer cancel()

	logger.Infof("Polling SQS queue %s for %s events", *conf.sqsName, *conf.eventName)
	if err := RunSQS(ctx, poller, processor, *conf.emptyPolls, *conf.sqsDelete); err != nil {
		logger.Fatalf("%v", err)
	}
}
