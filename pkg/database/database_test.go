package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionSettingsDefaults(t *testing.T) {
	t.Setenv("TRAVIGO_MONGODB_CONNECTION", "")
	t.Setenv("TRAVIGO_MONGODB_DATABASE", "")

	connectionString, dbName := ConnectionSettings()
	assert.Equal(t, "mongodb://localhost:27017/", connectionString)
	assert.Equal(t, "fleettracker", dbName)
}

func TestConnectionSettingsFromEnvironment(t *testing.T) {
	t.Setenv("TRAVIGO_MONGODB_CONNECTION", "mongodb://mongo.internal:27017/")
	t.Setenv("TRAVIGO_MONGODB_DATABASE", "fleet-staging")

	connectionString, dbName := ConnectionSettings()
	assert.Equal(t, "mongodb://mongo.internal:27017/", connectionString)
	assert.Equal(t, "fleet-staging", dbName)
}

func TestDisconnectWithoutConnection(t *testing.T) {
	assert.NoError(t, Disconnect(context.Background()))
}
