package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

// ActivityLogRepository implements domain.ActivityLogRepository. The trail is
// append-only.
type ActivityLogRepository struct {
	collection *mongo.Collection
}

// NewActivityLogRepository creates a new activity log repository
func NewActivityLogRepository(db *mongo.Database) *ActivityLogRepository {
	collection := db.Collection("activity_log")

	ensureIndexes(collection, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "orderId", Value: 1},
				{Key: "occurredAt", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "orderId", Value: 1},
				{Key: "lineId", Value: 1},
				{Key: "action", Value: 1},
				{Key: "occurredAt", Value: -1},
			},
		},
	})

	return &ActivityLogRepository{collection: collection}
}

func (r *ActivityLogRepository) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

func (r *ActivityLogRepository) FindByOrder(ctx context.Context, orderID string, limit int64) ([]*domain.ActivityLogEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "occurredAt", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"orderId": orderID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*domain.ActivityLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ActivityLogRepository) FindLatestByAction(ctx context.Context, orderID, lineID string, action domain.ActivityAction) (*domain.ActivityLogEntry, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "occurredAt", Value: -1}})
	filter := bson.M{"orderId": orderID, "lineId": lineID, "action": action}

	var entry domain.ActivityLogEntry
	err := r.collection.FindOne(ctx, filter, opts).Decode(&entry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}
