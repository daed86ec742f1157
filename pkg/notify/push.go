package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/ctdf"
	"github.com/travigo/fleettracker/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/api/option"
)

var errNoTarget = errors.New("notification has no target user or topic")

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// TargetLookup resolves the push token registered for a user
type TargetLookup interface {
	PushToken(ctx context.Context, userID string) (string, error)
}

type MongoTargetLookup struct {
	Collection *mongo.Collection
}

func (l *MongoTargetLookup) PushToken(ctx context.Context, userID string) (string, error) {
	var userPushNotificationTarget *ctdf.UserPushNotificationTarget

	err := l.Collection.FindOne(ctx, bson.M{"userid": userID}).Decode(&userPushNotificationTarget)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("failed to find push token for user %s", userID)
	}
	if err != nil {
		return "", err
	}

	return userPushNotificationTarget.PushNotificationToken, nil
}

type PushManager struct {
	sender  messageSender
	targets TargetLookup
}

// Setup connects to firebase using the base64 service account in TRAVIGO_FIREBASE_SERVICE_ACCOUNT.
// Without one the manager only logs the notifications it would have sent.
func (m *PushManager) Setup(ctx context.Context) error {
	m.targets = &MongoTargetLookup{Collection: database.GetCollection(database.UserPushNotificationTargetCollection)}

	fireBaseAuthKey := os.Getenv("TRAVIGO_FIREBASE_SERVICE_ACCOUNT")
	if fireBaseAuthKey == "" {
		log.Warn().Msg("TRAVIGO_FIREBASE_SERVICE_ACCOUNT not set, push notifications will only be logged")
		return nil
	}

	decodedKey, err := base64.StdEncoding.DecodeString(fireBaseAuthKey)
	if err != nil {
		return err
	}

	opts := []option.ClientOption{option.WithCredentialsJSON(decodedKey)}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return err
	}

	fcmClient, err := app.Messaging(ctx)
	if err != nil {
		return err
	}

	m.sender = fcmClient

	return nil
}

func (m *PushManager) buildMessage(ctx context.Context, notification ctdf.Notification) (*messaging.Message, error) {
	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Message,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		Data: notification.Data,
	}

	switch {
	case notification.TargetUser != "":
		token, err := m.targets.PushToken(ctx, notification.TargetUser)
		if err != nil {
			return nil, err
		}
		message.Token = token
	case notification.TargetTopic != "":
		message.Topic = notification.TargetTopic
	default:
		return nil, errNoTarget
	}

	return message, nil
}

func (m *PushManager) SendPush(ctx context.Context, notification ctdf.Notification) error {
	message, err := m.buildMessage(ctx, notification)
	if err != nil {
		return err
	}

	logger := log.With().
		Str("user", notification.TargetUser).
		Str("topic", notification.TargetTopic).
		Str("title", notification.Title).
		Logger()

	if m.sender == nil {
		logger.Info().Str("message", notification.Message).Msg("Push notifications not configured, dropping")
		return nil
	}

	if _, err := m.sender.Send(ctx, message); err != nil {
		return err
	}

	logger.Info().Msg("Sent Push Notification")

	return nil
}
