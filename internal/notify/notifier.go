package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier delivers a message to an identity. Delivery (email, SMS, in-app)
// is an external collaborator; this core only calls it.
type Notifier interface {
	Notify(ctx context.Context, identityID, title, message string) error
}

// NotifyEmail targets recipients who do not have an identity yet, such as
// invitees.
type EmailNotifier interface {
	NotifyEmail(ctx context.Context, email, title, message string) error
}

// LogNotifier writes notifications to the log. Stand-in until a real
// delivery collaborator is wired.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, identityID, title, message string) error {
	n.log.WithFields(logrus.Fields{
		"identity_id": identityID,
		"title":       title,
	}).Info(message)
	return nil
}

func (n *LogNotifier) NotifyEmail(_ context.Context, email, title, message string) error {
	n.log.WithFields(logrus.Fields{
		"email": email,
		"title": title,
	}).Info(message)
	return nil
}
