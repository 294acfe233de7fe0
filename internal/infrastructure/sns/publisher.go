package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-email-otp/internal/config"
	awsinfra "github.com/go-email-otp/internal/infrastructure/aws"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types published on the auth topic.
const (
	EventUserCreated       = "user.created"
	EventEmailVerified     = "user.email_verified"
	EventSessionCreated    = "session.created"
	EventPasswordReset     = "user.password_reset"
	eventTypeAttributeName = "event_type"
)

// Event is the JSON body of every published message.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType, userID, email string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher emits auth events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publisher struct {
	client   snsAPI
	topicARN string
}

// NewPublisher returns a no-op publisher when SNS_TOPIC_ARN is unset.
func NewPublisher(awsCfg aws.Config, cfg *config.Config) Publisher {
	if cfg.SNSTopicARN == "" {
		return Noop{}
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if ep := awsinfra.Endpoint(cfg); ep != nil {
			o.BaseEndpoint = ep
		}
	})
	return &publisher{client: client, topicARN: cfg.SNSTopicARN}
}

func (p *publisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			eventTypeAttributeName: {DataType: aws.String("String"), StringValue: aws.String(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Emit publishes e and logs a failure instead of returning it. Auth flows
// never fail because the event bus is unavailable.
func Emit(ctx context.Context, p Publisher, log logrus.FieldLogger, e Event) {
	if err := p.Publish(ctx, e); err != nil {
		log.WithError(err).WithFields(logrus.Fields{"event_id": e.ID, "event_type": e.Type, "user_id": e.UserID}).Warn("failed to publish event")
	}
}
