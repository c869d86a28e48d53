package service

import (
	"context"
	"fmt"
	"strconv"

	"iotkit-lending-backend/internal/domain"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// pushNotifier publishes to the FCM topic the mobile app subscribes each account to.
type pushNotifier struct {
	client messageSender
}

func NewPushNotifier(ctx context.Context, projectID, credentialsFile string) (Notifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase messaging: %w", err)
	}
	return &pushNotifier{client: client}, nil
}

func (n *pushNotifier) Name() string { return "fcm" }

func (n *pushNotifier) Notify(ctx context.Context, account *domain.Account, note *domain.Notification) error {
	msg := &messaging.Message{
		Topic: AccountTopic(note.UserID),
		Notification: &messaging.Notification{
			Title: note.Title,
			Body:  note.Message,
		},
		Data: note.Attributes,
	}
	if _, err := n.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func AccountTopic(userID int32) string {
	return "account-" + strconv.Itoa(int(userID))
}
