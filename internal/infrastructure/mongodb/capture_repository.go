package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

// CaptureRepository implements domain.CaptureRepository. Capture rows are
// append-only; there is no update or delete path.
type CaptureRepository struct {
	collection *mongo.Collection
}

// NewCaptureRepository creates a new step capture repository
func NewCaptureRepository(db *mongo.Database) *CaptureRepository {
	collection := db.Collection("step_captures")

	ensureIndexes(collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "captureId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "stepId", Value: 1},
				{Key: "kind", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "orderId", Value: 1}},
		},
	})

	return &CaptureRepository{collection: collection}
}

func (r *CaptureRepository) Save(ctx context.Context, capture *domain.StepCapture) error {
	_, err := r.collection.InsertOne(ctx, capture)
	return err
}

func (r *CaptureRepository) FindByStep(ctx context.Context, stepID string) ([]*domain.StepCapture, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recordedAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"stepId": stepID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var captures []*domain.StepCapture
	if err := cursor.All(ctx, &captures); err != nil {
		return nil, err
	}
	return captures, nil
}
