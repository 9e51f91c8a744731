package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

// RouteInstanceRepository implements domain.RouteInstanceRepository
type RouteInstanceRepository struct {
	collection *mongo.Collection
	events     *eventWriter
}

// NewRouteInstanceRepository creates a new route instance repository
func NewRouteInstanceRepository(db *mongo.Database) *RouteInstanceRepository {
	collection := db.Collection("route_instances")

	ensureIndexes(collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "instanceId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "orderId", Value: 1},
				{Key: "lineId", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "templateId", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "steps.workCenterId", Value: 1},
				{Key: "state", Value: 1},
			},
		},
	})

	return &RouteInstanceRepository{
		collection: collection,
		events:     newEventWriter(db),
	}
}

func (r *RouteInstanceRepository) Save(ctx context.Context, instance *domain.RouteInstance) error {
	err := upsertWithEvents(ctx, r.collection, r.events,
		bson.M{"instanceId": instance.InstanceID}, instance,
		instance.InstanceID, "RouteInstance", routeEventsTopic, "route/"+instance.InstanceID,
		instance.DomainEvents)
	if err == nil {
		instance.ClearDomainEvents()
	}
	return err
}

func (r *RouteInstanceRepository) FindByID(ctx context.Context, instanceID string) (*domain.RouteInstance, error) {
	var instance domain.RouteInstance
	err := r.collection.FindOne(ctx, bson.M{"instanceId": instanceID}).Decode(&instance)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &instance, nil
}

func (r *RouteInstanceRepository) FindByOrder(ctx context.Context, orderID string) ([]*domain.RouteInstance, error) {
	return r.find(ctx, bson.M{"orderId": orderID})
}

func (r *RouteInstanceRepository) FindByLine(ctx context.Context, orderID, lineID string) ([]*domain.RouteInstance, error) {
	return r.find(ctx, bson.M{"orderId": orderID, "lineId": lineID})
}

func (r *RouteInstanceRepository) FindByWorkCenter(ctx context.Context, workCenterID string, states []domain.RouteState) ([]*domain.RouteInstance, error) {
	filter := bson.M{"steps.workCenterId": workCenterID}
	if len(states) > 0 {
		filter["state"] = bson.M{"$in": states}
	}
	return r.find(ctx, filter)
}

func (r *RouteInstanceRepository) ExistsByTemplate(ctx context.Context, templateID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"templateId": templateID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RouteInstanceRepository) find(ctx context.Context, filter bson.M) ([]*domain.RouteInstance, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var instances []*domain.RouteInstance
	if err := cursor.All(ctx, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}
