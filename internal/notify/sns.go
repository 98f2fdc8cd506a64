// internal/notify/sns.go
package notify

import (
	"context"
	"fmt"

	"business-empire/internal/models"
)

// TopicPublisher is the slice of the SNS client the notifier needs.
type TopicPublisher interface {
	PublishToTopic(ctx context.Context, topicARN, subject, message string) error
}

// SNSNotifier fans the report summary out to an SNS topic so operators get
// the daily outcome (including partial failures) pushed to them.
type SNSNotifier struct {
	publisher TopicPublisher
	topicARN  string
}

func NewSNSNotifier(publisher TopicPublisher, topicARN string) *SNSNotifier {
	return &SNSNotifier{publisher: publisher, topicARN: topicARN}
}

func (n *SNSNotifier) Name() string { return "sns" }

func (n *SNSNotifier) Notify(ctx context.Context, report *models.DailyReport) error {
	if err := n.publisher.PublishToTopic(ctx, n.topicARN, Subject(report), FormatReport(report)); err != nil {
		return fmt.Errorf("sns publish failed: %w", err)
	}
	return nil
}
