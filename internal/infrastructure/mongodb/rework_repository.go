package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

var openReworkStates = []domain.ReworkState{
	domain.ReworkRequested,
	domain.ReworkApproved,
	domain.ReworkInProgress,
	domain.ReworkVerificationPending,
}

// ReworkRepository implements domain.ReworkRepository
type ReworkRepository struct {
	collection *mongo.Collection
	events     *eventWriter
}

// NewReworkRepository creates a new rework repository
func NewReworkRepository(db *mongo.Database) *ReworkRepository {
	collection := db.Collection("reworks")

	ensureIndexes(collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reworkId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "orderId", Value: 1},
				{Key: "state", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "stepId", Value: 1},
				{Key: "state", Value: 1},
			},
		},
	})

	return &ReworkRepository{
		collection: collection,
		events:     newEventWriter(db),
	}
}

func (r *ReworkRepository) Save(ctx context.Context, rework *domain.Rework) error {
	err := upsertWithEvents(ctx, r.collection, r.events,
		bson.M{"reworkId": rework.ReworkID}, rework,
		rework.ReworkID, "Rework", reworkEventsTopic, "rework/"+rework.ReworkID,
		rework.DomainEvents)
	if err == nil {
		rework.ClearDomainEvents()
	}
	return err
}

func (r *ReworkRepository) FindByID(ctx context.Context, reworkID string) (*domain.Rework, error) {
	var rework domain.Rework
	err := r.collection.FindOne(ctx, bson.M{"reworkId": reworkID}).Decode(&rework)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &rework, nil
}

func (r *ReworkRepository) FindOpenByOrder(ctx context.Context, orderID string) ([]*domain.Rework, error) {
	filter := bson.M{"orderId": orderID, "state": bson.M{"$in": openReworkStates}}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reworks []*domain.Rework
	if err := cursor.All(ctx, &reworks); err != nil {
		return nil, err
	}
	return reworks, nil
}

func (r *ReworkRepository) FindOpenByStep(ctx context.Context, stepID string) (*domain.Rework, error) {
	filter := bson.M{"stepId": stepID, "state": bson.M{"$in": openReworkStates}}

	var rework domain.Rework
	err := r.collection.FindOne(ctx, filter).Decode(&rework)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &rework, nil
}
