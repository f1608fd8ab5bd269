package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gta-grind-tracker/internal/model"
)

// MongoNotificationLog implements NotificationLogRepository for MongoDB.
// It also listens to the scheduler and logs every fired notification.
type MongoNotificationLog struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoNotificationLog connects to MongoDB.
func NewMongoNotificationLog(uri, dbName, collectionName string) (*MongoNotificationLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	collection := client.Database(dbName).Collection(collectionName)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "fired_at", Value: -1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return &MongoNotificationLog{client: client, collection: collection}, nil
}

// InsertNotificationLog stores one entry.
func (r *MongoNotificationLog) InsertNotificationLog(ctx context.Context, entry *model.NotificationLog) error {
	entry.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

// GetNotificationLogs returns entries newest first, with the total count.
func (r *MongoNotificationLog) GetNotificationLogs(ctx context.Context, limit, offset int) ([]model.NotificationLog, int64, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "fired_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	entries := []model.NotificationLog{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	return entries, count, nil
}

// NotificationFired logs a notification emitted by the scheduler.
func (r *MongoNotificationLog) NotificationFired(ctx context.Context, n model.PendingNotification, message string) error {
	return r.InsertNotificationLog(ctx, NewNotificationLog(n, message))
}

// Close closes the MongoDB connection.
func (r *MongoNotificationLog) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// NewNotificationLog converts a fired notification into a log entry.
func NewNotificationLog(n model.PendingNotification, message string) *model.NotificationLog {
	return &model.NotificationLog{
		NotificationID: n.ID,
		ActivityID:     n.ActivityID,
		ActivityName:   n.ActivityName,
		Type:           n.Type,
		Message:        message,
		Value:          n.Value,
		FiredAt:        n.Timestamp,
	}
}

var _ NotificationLogRepository = (*MongoNotificationLog)(nil)
