// Package ses sends confirmation email through AWS SES v2.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/newsletter/internal/domain"
)

// sendEmailAPI is the subset of *sesv2.Client the sender uses.
type sendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Options configures the SES sender.
type Options struct {
	Region    string
	AccessKey string
	SecretKey string
	// ConfigurationSet is attached to every message when set.
	ConfigurationSet string
}

// Client is an AWS SES v2 email sender.
type Client struct {
	api              sendEmailAPI
	sender           domain.SubscriberEmail
	configurationSet string
}

// NewClient creates an SES sender. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, opts Options, sender domain.SubscriberEmail) (*Client, error) {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return newClient(sesv2.NewFromConfig(awsCfg), sender, opts.ConfigurationSet), nil
}

func newClient(api sendEmailAPI, sender domain.SubscriberEmail, configurationSet string) *Client {
	return &Client{api: api, sender: sender, configurationSet: configurationSet}
}

// SendEmail delivers one message with both HTML and text parts.
func (c *Client) SendEmail(ctx context.Context, recipient domain.SubscriberEmail, subject, textBody, htmlBody string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.sender.String()),
		Destination:      &types.Destination{ToAddresses: []string{recipient.String()}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("category"), Value: aws.String("subscription_confirmation")},
		},
	}
	if c.configurationSet != "" {
		input.ConfigurationSetName = aws.String(c.configurationSet)
	}

	if _, err := c.api.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	return nil
}
