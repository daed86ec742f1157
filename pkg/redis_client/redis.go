package redis_client

import (
	"context"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/travigo/fleettracker/pkg/util"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultDatabase = 0

// Options reads the connection settings from TRAVIGO_REDIS_* environment variables
func Options() (*redis.Options, error) {
	env := util.GetEnvironmentVariables()

	options := &redis.Options{
		Addr: defaultConnectionAddress,
		DB:   defaultDatabase,
	}

	if env["TRAVIGO_REDIS_ADDRESS"] != "" {
		options.Addr = env["TRAVIGO_REDIS_ADDRESS"]
	}

	if env["TRAVIGO_REDIS_PASSWORD"] != "" {
		options.Password = env["TRAVIGO_REDIS_PASSWORD"]
	}

	if env["TRAVIGO_REDIS_DATABASE"] != "" {
		n, err := strconv.Atoi(env["TRAVIGO_REDIS_DATABASE"])
		if err != nil {
			return nil, err
		}
		options.DB = n
	}

	return options, nil
}

func Connect() error {
	options, err := Options()
	if err != nil {
		return err
	}

	return ConnectWithOptions(options)
}

// ConnectWithOptions sets up the shared client and queue connection
func ConnectWithOptions(options *redis.Options) error {
	Client = redis.NewClient(options)

	if err := Client.Ping(context.Background()).Err(); err != nil {
		return err
	}

	var err error
	QueueConnection, err = rmq.OpenConnectionWithRedisClient("fleettracker", Client, nil)
	if err != nil {
		return err
	}

	return nil
}
