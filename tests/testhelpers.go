package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TestContainers holds references to test containers
type TestContainers struct {
	MongoContainer *mongodb.MongoDBContainer
	RedisContainer *redis.RedisContainer
	MongoDB        *mongo.Database
	Cleanup        func()
}

// SetupTestContainers starts MongoDB and Redis containers for testing
func SetupTestContainers(t *testing.T) *TestContainers {
	ctx := context.Background()

	// Start MongoDB container. A single-node replica set is required for the
	// transactional flows (contested phone-ownership transfer).
	mongoContainer, err := mongodb.Run(ctx,
		"mongo:7.0",
		mongodb.WithReplicaSet("rs0"),
	)
	require.NoError(t, err, "Failed to start MongoDB container")

	// Start Redis container
	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
	)
	require.NoError(t, err, "Failed to start Redis container")

	// Get MongoDB connection string
	mongoURI, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MongoDB connection string")

	// Get Redis connection string
	redisURI, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get Redis connection string")

	// Connect to MongoDB
	clientOptions := options.Client().ApplyURI(mongoURI)
	mongoClient, err := mongo.Connect(ctx, clientOptions)
	require.NoError(t, err, "Failed to connect to MongoDB")

	// Ping MongoDB
	err = mongoClient.Ping(ctx, nil)
	require.NoError(t, err, "Failed to ping MongoDB")

	// Get test database
	database := mongoClient.Database("eligibility_test")

	// Initialize config for tests
	if config.AppConfig == nil {
		config.AppConfig = &config.Config{}
	}

	// Set test configuration
	config.AppConfig.MongoURI = mongoURI
	config.AppConfig.MongoDatabase = "eligibility_test"
	config.AppConfig.RedisURI = redisURI
	config.AppConfig.PersonCollection = "persons"
	config.AppConfig.FraudCheckCollection = "fraud_checks"
	config.AppConfig.FraudReviewCollection = "fraud_reviews"
	config.AppConfig.PhoneValidationCollection = "phone_validations"
	config.AppConfig.PhoneCodeTTL = 10 * time.Minute
	config.AppConfig.MaxVerifyAttempts = 3
	config.AppConfig.SMSSendLimit = 3
	config.AppConfig.SMSSendLimitWindow = 12 * time.Hour
	config.AppConfig.SMSSendMaxAttempts = 3
	config.AppConfig.SMSSendBackoff = 10 * time.Millisecond
	config.AppConfig.SMSSendTimeout = 5 * time.Second
	config.AppConfig.PhoneCountryAllowList = []string{"FR", "GP", "MQ", "GF", "RE", "PM", "YT", "WF", "PF", "NC"}
	config.AppConfig.RedisDB = 0
	config.AppConfig.RedisPassword = ""

	// Set global MongoDB reference
	config.MongoDB = database

	// The partial unique index on validated phone owners is part of the
	// behavior under test; the suite must run against the same indexes as
	// production.
	require.NoError(t, config.EnsureIndexes(), "Failed to create indexes")

	cleanup := func() {
		// Disconnect MongoDB
		if mongoClient != nil {
			ctx := context.Background()
			mongoClient.Disconnect(ctx)
		}

		// Terminate containers
		if mongoContainer != nil {
			mongoContainer.Terminate(ctx)
		}
		if redisContainer != nil {
			redisContainer.Terminate(ctx)
		}
	}

	return &TestContainers{
		MongoContainer: mongoContainer,
		RedisContainer: redisContainer,
		MongoDB:        database,
		Cleanup:        cleanup,
	}
}

// CleanupDatabase drops all collections in the test database
func CleanupDatabase(t *testing.T, db *mongo.Database) {
	ctx := context.Background()
	collections, err := db.ListCollectionNames(ctx, map[string]interface{}{})
	require.NoError(t, err, "Failed to list collections")

	for _, collection := range collections {
		err := db.Collection(collection).Drop(ctx)
		require.NoError(t, err, fmt.Sprintf("Failed to drop collection %s", collection))
	}
}
