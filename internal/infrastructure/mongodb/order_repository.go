package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

// OrderRepository implements domain.OrderRepository
type OrderRepository struct {
	collection *mongo.Collection
	events     *eventWriter
}

// NewOrderRepository creates a new production order repository
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	collection := db.Collection("production_orders")

	ensureIndexes(collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "lifecycle", Value: 1}},
		},
	})

	return &OrderRepository{
		collection: collection,
		events:     newEventWriter(db),
	}
}

func (r *OrderRepository) Save(ctx context.Context, order *domain.ProductionOrder) error {
	err := upsertWithEvents(ctx, r.collection, r.events,
		bson.M{"orderId": order.OrderID}, order,
		order.OrderID, "ProductionOrder", orderEventsTopic, "order/"+order.OrderID,
		order.DomainEvents)
	if err == nil {
		order.ClearDomainEvents()
	}
	return err
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (*domain.ProductionOrder, error) {
	var order domain.ProductionOrder
	err := r.collection.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*domain.ProductionOrder, error) {
	var order domain.ProductionOrder
	err := r.collection.FindOne(ctx, bson.M{"orderNumber": orderNumber}).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}
