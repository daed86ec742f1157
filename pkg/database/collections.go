package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const TrackingSessionsCollection = "tracking_sessions"
const UserPushNotificationTargetCollection = "user_push_notification_target"

func createIndexes() {
	createTrackingIndexes()
	createNotificationIndexes()
}

func createTrackingIndexes() {
	trackingSessionsCollection := GetCollection(TrackingSessionsCollection)
	tripLiveIndexName := "TripStatus"
	_, err := trackingSessionsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "busref", Value: 1}},
		},
		{
			Options: &options.IndexOptions{
				Name: &tripLiveIndexName,
			},
			Keys: bson.D{
				{Key: "tripref", Value: 1},
				{Key: "status", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "currentstate.location", Value: "2dsphere"}},
		},
		{
			Keys:    bson.D{{Key: "modificationdatetime", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(30 * 24 * 3600), // Expire after 30 days
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createNotificationIndexes() {
	userPushNotificationTargetCollection := GetCollection(UserPushNotificationTargetCollection)
	_, err := userPushNotificationTargetCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userid", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
