package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

// RouteTemplateRepository implements domain.RouteTemplateRepository
type RouteTemplateRepository struct {
	collection *mongo.Collection
	events     *eventWriter
}

// NewRouteTemplateRepository creates a new route template repository
func NewRouteTemplateRepository(db *mongo.Database) *RouteTemplateRepository {
	collection := db.Collection("route_templates")

	ensureIndexes(collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "templateId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "active", Value: 1}},
		},
	})

	return &RouteTemplateRepository{
		collection: collection,
		events:     newEventWriter(db),
	}
}

func (r *RouteTemplateRepository) Save(ctx context.Context, template *domain.RouteTemplate) error {
	err := upsertWithEvents(ctx, r.collection, r.events,
		bson.M{"templateId": template.TemplateID}, template,
		template.TemplateID, "RouteTemplate", routeEventsTopic, "template/"+template.TemplateID,
		template.DomainEvents)
	if err == nil {
		template.ClearDomainEvents()
	}
	return err
}

func (r *RouteTemplateRepository) FindByID(ctx context.Context, templateID string) (*domain.RouteTemplate, error) {
	var template domain.RouteTemplate
	err := r.collection.FindOne(ctx, bson.M{"templateId": templateID}).Decode(&template)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &template, nil
}

func (r *RouteTemplateRepository) FindByCode(ctx context.Context, code string) (*domain.RouteTemplate, error) {
	var template domain.RouteTemplate
	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&template)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &template, nil
}

func (r *RouteTemplateRepository) FindAll(ctx context.Context, activeOnly bool) ([]*domain.RouteTemplate, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}

	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []*domain.RouteTemplate
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *RouteTemplateRepository) Delete(ctx context.Context, templateID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"templateId": templateID})
	return err
}
