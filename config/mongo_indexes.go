package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongorepo "github.com/yoockh/yoocv/internal/repositories/mongo"
)

func EnsureMongoIndexes(cfg Config) error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoDatabase(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docs := db.Collection(mongorepo.DocumentsCollection)
	_, err := docs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_user_created"),
		},
				{
			Keys:    bson.D{{Key: "status.state", Value: 1}, {Key: "status.updated_at", Value: 1}},
			Options: options.Index().SetName("by_state_updated"),
		},
		{
			Keys: bson.D{{Key: "tailored_for_job.origin_document_id", Value: 1}},
			Options: options.Index().
				SetName("by_tailored_origin").
				SetSparse(true),
		},
	})
	return err
}
