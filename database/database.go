package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"curalink/models"
)

var Client *mongo.Client
var DB *mongo.Database
var Users *mongo.Collection
var Publications *mongo.Collection
var Trials *mongo.Collection
var Forums *mongo.Collection
var Posts *mongo.Collection
var Replies *mongo.Collection
var Favorites *mongo.Collection
var PushSubs *mongo.Collection

func Connect(uri, name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}

	Client = client
	Use(client.Database(name))
	return nil
}

// Use points every collection handle at db. Tests call it with a mock database.
func Use(db *mongo.Database) {
	DB = db
	Users = db.Collection("users")
	Publications = db.Collection("publications")
	Trials = db.Collection("clinicaltrials")
	Forums = db.Collection("forums")
	Posts = db.Collection("posts")
	Replies = db.Collection("replies")
	Favorites = db.Collection("favorites")
	PushSubs = db.Collection("push_subscriptions")
}

// ContentCollection returns the collection holding favoritable documents
// of type t, or nil for an unknown type.
func ContentCollection(t models.ContentType) *mongo.Collection {
	switch t {
	case models.ContentUser:
		return Users
	case models.ContentPublication:
		return Publications
	case models.ContentClinicalTrial:
		return Trials
	}
	return nil
}

func Ping(ctx context.Context) error {
	if Client == nil {
		return mongo.ErrClientDisconnected
	}
	return Client.Ping(ctx, nil)
}

// EnsureIndexes creates the unique constraints the handlers rely on for
// conflict detection, plus the foreign-key lookup indexes.
func EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{Users, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}},
		{Forums, mongo.IndexModel{Keys: bson.D{{Key: "title", Value: 1}}, Options: unique}},
		{Favorites, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "content_id", Value: 1}}, Options: unique}},
		{PushSubs, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique}},
		{Publications, mongo.IndexModel{Keys: bson.D{{Key: "author_id", Value: 1}}}},
		{Trials, mongo.IndexModel{Keys: bson.D{{Key: "researcher_id", Value: 1}}}},
		{Posts, mongo.IndexModel{Keys: bson.D{{Key: "forum_id", Value: 1}}}},
		{Replies, mongo.IndexModel{Keys: bson.D{{Key: "post_id", Value: 1}}}},
	}

	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			return err
		}
	}
	return nil
}

func Disconnect() error {
	if Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return Client.Disconnect(ctx)
}
