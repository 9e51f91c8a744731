// Package mongodb implements the domain repositories on MongoDB with a
// transactional outbox for domain events.
package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mes-platform/route-execution-service/internal/domain"
	"github.com/mes-platform/route-execution-service/pkg/cloudevents"
	"github.com/mes-platform/route-execution-service/pkg/outbox"
)

const (
	routeEventsTopic  = "mes.route-execution.events"
	orderEventsTopic  = "mes.orders.events"
	reworkEventsTopic = "mes.rework.events"

	eventSource = "/route-execution-service"
)

// eventWriter stores domain events in the outbox collection inside the same
// transaction as the aggregate write.
type eventWriter struct {
	outboxCollection *mongo.Collection
	eventFactory     *cloudevents.EventFactory
}

func newEventWriter(db *mongo.Database) *eventWriter {
	return &eventWriter{
		outboxCollection: db.Collection("outbox"),
		eventFactory:     cloudevents.NewEventFactory(eventSource),
	}
}

func (w *eventWriter) write(sessCtx mongo.SessionContext, aggregateID, aggregateType, topic, subject string, events []domain.DomainEvent) error {
	for _, event := range events {
		cloudEvent := w.eventFactory.CreateEvent(sessCtx, event.EventType(), subject, event)
		outboxEvent, err := outbox.NewEventFromCloudEvent(aggregateID, aggregateType, topic, cloudEvent)
		if err != nil {
			return err
		}
		if _, err := w.outboxCollection.InsertOne(sessCtx, outboxEvent); err != nil {
			return err
		}
	}
	return nil
}

// upsertWithEvents replaces the aggregate document and writes its pending
// events in one transaction.
func upsertWithEvents(
	ctx context.Context,
	collection *mongo.Collection,
	writer *eventWriter,
	filter bson.M,
	document interface{},
	aggregateID, aggregateType, topic, subject string,
	events []domain.DomainEvent,
) error {
	session, err := collection.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		opts := options.Replace().SetUpsert(true)
		if _, err := collection.ReplaceOne(sessCtx, filter, document, opts); err != nil {
			return nil, err
		}
		if err := writer.write(sessCtx, aggregateID, aggregateType, topic, subject, events); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func ensureIndexes(collection *mongo.Collection, indexes []mongo.IndexModel) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	collection.Indexes().CreateMany(ctx, indexes)
}
