package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

// RouteAssignmentRepository implements domain.RouteAssignmentRepository
type RouteAssignmentRepository struct {
	collection *mongo.Collection
}

// NewRouteAssignmentRepository creates a new route assignment repository
func NewRouteAssignmentRepository(db *mongo.Database) *RouteAssignmentRepository {
	collection := db.Collection("route_assignments")

	ensureIndexes(collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "assignmentId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "templateId", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "active", Value: 1},
				{Key: "effectiveFrom", Value: 1},
			},
		},
	})

	return &RouteAssignmentRepository{collection: collection}
}

func (r *RouteAssignmentRepository) Save(ctx context.Context, assignment *domain.RouteAssignment) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"assignmentId": assignment.AssignmentID}, assignment, opts)
	return err
}

func (r *RouteAssignmentRepository) FindByID(ctx context.Context, assignmentID string) (*domain.RouteAssignment, error) {
	var assignment domain.RouteAssignment
	err := r.collection.FindOne(ctx, bson.M{"assignmentId": assignmentID}).Decode(&assignment)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *RouteAssignmentRepository) FindActive(ctx context.Context) ([]*domain.RouteAssignment, error) {
	return r.find(ctx, bson.M{"active": true})
}

func (r *RouteAssignmentRepository) FindAll(ctx context.Context) ([]*domain.RouteAssignment, error) {
	return r.find(ctx, bson.M{})
}

func (r *RouteAssignmentRepository) ExistsByTemplate(ctx context.Context, templateID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"templateId": templateID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RouteAssignmentRepository) find(ctx context.Context, filter bson.M) ([]*domain.RouteAssignment, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "priority", Value: 1},
		{Key: "effectiveFrom", Value: -1},
	})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []*domain.RouteAssignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}
