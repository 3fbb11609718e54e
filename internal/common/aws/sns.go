package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	appconfig "nomination-relay/internal/common/config"
)

// PublishAPI is the part of the SNS client used for direct SMS.
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient sends SMS straight to a phone number, without a topic.
type SNSClient struct {
	client   PublishAPI
	senderID string
	smsType  string
}

func NewSNSClient(ctx context.Context, cfg appconfig.AWSConfig) (*SNSClient, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewSNSClientWithAPI(sns.NewFromConfig(awsCfg), cfg), nil
}

func NewSNSClientWithAPI(api PublishAPI, cfg appconfig.AWSConfig) *SNSClient {
	return &SNSClient{
		client:   api,
		senderID: cfg.SNS.SenderID,
		smsType:  cfg.SNS.SMSType,
	}
}

func (s *SNSClient) Name() string { return appconfig.SMSProviderSNS }

func (s *SNSClient) Configured() bool { return s != nil && s.client != nil }

// Send publishes message to the E.164 number to.
func (s *SNSClient) Send(ctx context.Context, to, message string) error {
	attrs := map[string]types.MessageAttributeValue{}
	if s.smsType != "" {
		attrs["AWS.SNS.SMS.SMSType"] = stringAttribute(s.smsType)
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = stringAttribute(s.senderID)
	}

	input := &sns.PublishInput{
		PhoneNumber: awssdk.String(to),
		Message:     awssdk.String(message),
	}
	if len(attrs) > 0 {
		input.MessageAttributes = attrs
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("failed to publish sms: %w", err)
	}
	return nil
}

func stringAttribute(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    awssdk.String("String"),
		StringValue: awssdk.String(v),
	}
}
