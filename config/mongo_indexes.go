package config

import (
	"context"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "hireloop"
	}
	db := MongoClient.Database(dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions := db.Collection("interview_sessions")
	_, err := sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_session_id").
				SetUnique(true),
		},
		// Resume-on-reload: newest active session first.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "start_time", Value: -1}},
			Options: options.Index().SetName("by_status_started"),
		},
		// Dashboard detail joins the session by candidate.
		{
			Keys:    bson.D{{Key: "candidate_id", Value: 1}},
			Options: options.Index().SetName("by_candidate"),
		},
	})
	return err
}
