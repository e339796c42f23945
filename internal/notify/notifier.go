package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xiongtingping/wenpai-sub001/internal/models"
)

// Notification is a fire-and-forget "tell the user" message. PlaySound is a
// hint for the consuming client; it carries no delivery guarantee.
type Notification struct {
	CheckoutID string
	Title      string
	Body       string
	PlaySound  bool
	TraceID    string
}

// Notifier delivers user notifications. Implementations may fail silently;
// a notification that never arrives must not affect monitoring correctness.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Publisher is the event-publishing capability the kafka notifier rides on.
type Publisher interface {
	Publish(ctx context.Context, topic string, message interface{}) error
}

// KafkaNotifier publishes notifications to the user-notification topic.
// Publish failures are logged and swallowed.
type KafkaNotifier struct {
	Publisher Publisher
}

func NewKafkaNotifier(p Publisher) *KafkaNotifier {
	return &KafkaNotifier{Publisher: p}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) {
	event := models.UserNotificationEvent{
		CheckoutID: n.CheckoutID,
		Title:      n.Title,
		Body:       n.Body,
		PlaySound:  n.PlaySound,
		TraceID:    n.TraceID,
		SentAt:     time.Now().UTC(),
	}
	if err := k.Publisher.Publish(ctx, models.UserNotificationEventTopic, event); err != nil {
		logrus.Warnf("user notification for checkout %s dropped: %s", n.CheckoutID, err.Error())
	}
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}
