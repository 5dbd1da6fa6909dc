package reminder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
)

// SQSNotifier publishes due reminders to a queue consumed by the delivery
// service.
type SQSNotifier struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSNotifier builds a client from the default AWS credential chain.
func NewSQSNotifier(ctx context.Context, queueURL string) (*SQSNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := sqs.New(sqs.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	})

	return &SQSNotifier{client: client, queueURL: queueURL}, nil
}

func (n *SQSNotifier) Notify(ctx context.Context, d Due) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}

	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String(string(d.Kind))},
		},
	})
	if err != nil {
		return fmt.Errorf("send reminder to sqs: %w", err)
	}
	return nil
}

// LogNotifier only logs reminders. Used when no queue is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, d Due) error {
	n.logger.Info().
		Str("reminder_id", d.ID.String()).
		Str("appointment_id", d.AppointmentID.String()).
		Str("patient_id", d.PatientID.String()).
		Str("kind", string(d.Kind)).
		Time("appointment_at", d.AppointmentAt).
		Msg("reminder due")
	return nil
}
