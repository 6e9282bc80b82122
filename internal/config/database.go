package config

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/models"
	"github.com/culturepass/eligibility-engine/internal/redisclient"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

var (
	// MongoDB client
	MongoDB *mongo.Database
	// Redis client
	Redis *redisclient.Client
)

// InitMongoDB initializes the MongoDB connection
func InitMongoDB() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(AppConfig.MongoURI).
		SetMonitor(otelmongo.NewMonitor()).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		log.Fatal(err)
	}

	// Ping the database
	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		log.Fatal(err)
	}

	MongoDB = client.Database(AppConfig.MongoDatabase)

	if err := EnsureIndexes(); err != nil {
		logging.Logger.Error("failed to ensure indexes on startup", zap.Error(err))
	}

	logging.Logger.Info("connected to MongoDB",
		zap.String("uri", maskMongoURI(AppConfig.MongoURI)),
		zap.String("database", AppConfig.MongoDatabase),
	)
}

// InitRedis initializes the Redis connection
func InitRedis() {
	redisClient := redis.NewClient(&redis.Options{
		Addr:         AppConfig.RedisURI,
		Password:     AppConfig.RedisPassword,
		DB:           AppConfig.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Wrap with traced client
	Redis = redisclient.NewClient(redisClient)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Redis.Ping(ctx).Err(); err != nil {
		logging.Logger.Error("failed to connect to Redis",
			zap.String("uri", AppConfig.RedisURI),
			zap.Error(err))
		return
	}

	logging.Logger.Info("connected to Redis",
		zap.String("uri", AppConfig.RedisURI))
}

// maskMongoURI masks sensitive information in MongoDB URI
func maskMongoURI(uri string) string {
	if !strings.Contains(uri, "@") {
		return uri
	}
	return "mongodb://****:****@" + uri[strings.LastIndex(uri, "@")+1:]
}

// EnsureIndexes creates required indexes if they don't exist
func EnsureIndexes() error {
	logger := zap.L().Named("database")
	logger.Info("ensuring required indexes exist")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ensurePersonIndexes(ctx, logger); err != nil {
		return err
	}
	if err := ensureFraudCheckIndexes(ctx, logger); err != nil {
		return err
	}
	if err := ensureFraudReviewIndexes(ctx, logger); err != nil {
		return err
	}
	if err := ensurePhoneValidationIndexes(ctx, logger); err != nil {
		return err
	}

	logger.Info("all required indexes verified")
	return nil
}

// ensurePersonIndexes creates indexes for the person collection. Besides the
// unique person id, a partial unique index enforces the invariant that a phone
// number belongs to at most one VALIDATED person at any instant.
func ensurePersonIndexes(ctx context.Context, logger *zap.Logger) error {
	collection := MongoDB.Collection(AppConfig.PersonCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "person_id", Value: 1}},
			Options: options.Index().
				SetName("person_id_1").
				SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "phone_number", Value: 1}},
			Options: options.Index().
				SetName("validated_phone_owner").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"phone_validation_status": models.PhoneStatusValidated,
				}),
		},
	}

	return createIndexes(ctx, logger, collection, AppConfig.PersonCollection, indexes)
}

// ensureFraudCheckIndexes creates indexes for the fraud check ledger
func ensureFraudCheckIndexes(ctx context.Context, logger *zap.Logger) error {
	collection := MongoDB.Collection(AppConfig.FraudCheckCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "person_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("person_id_1_created_at_-1"),
		},
		{
			Keys:    bson.D{{Key: "third_party_id", Value: 1}},
			Options: options.Index().SetName("third_party_id_1").SetSparse(true),
		},
	}

	return createIndexes(ctx, logger, collection, AppConfig.FraudCheckCollection, indexes)
}

// ensureFraudReviewIndexes creates indexes for the fraud review side table
func ensureFraudReviewIndexes(ctx context.Context, logger *zap.Logger) error {
	collection := MongoDB.Collection(AppConfig.FraudReviewCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "person_id", Value: 1},
				{Key: "reviewed_at", Value: -1},
			},
			Options: options.Index().SetName("person_id_1_reviewed_at_-1"),
		},
	}

	return createIndexes(ctx, logger, collection, AppConfig.FraudReviewCollection, indexes)
}

// ensurePhoneValidationIndexes creates indexes for pending phone validations.
// A person holds at most one pending validation at a time.
func ensurePhoneValidationIndexes(ctx context.Context, logger *zap.Logger) error {
	collection := MongoDB.Collection(AppConfig.PhoneValidationCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "person_id", Value: 1}},
			Options: options.Index().
				SetName("person_id_1").
				SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("expires_at_ttl").
				SetExpireAfterSeconds(0),
		},
	}

	return createIndexes(ctx, logger, collection, AppConfig.PhoneValidationCollection, indexes)
}

// createIndexes creates the given indexes, tolerating concurrent creation by
// another instance.
func createIndexes(ctx context.Context, logger *zap.Logger, collection *mongo.Collection, name string, indexes []mongo.IndexModel) error {
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			logger.Info("indexes already exist (created by another instance)",
				zap.String("collection", name))
			return nil
		}
		logger.Error("failed to create indexes",
			zap.String("collection", name),
			zap.Error(err))
		return err
	}

	logger.Debug("collection indexes verified", zap.String("collection", name))
	return nil
}
