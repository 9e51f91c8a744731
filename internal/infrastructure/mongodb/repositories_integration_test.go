package mongodb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/mes-platform/route-execution-service/internal/domain"
	"github.com/mes-platform/route-execution-service/internal/infrastructure/mongodb"
	sharedtesting "github.com/mes-platform/route-execution-service/pkg/testing"
)

var integrationNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func setupDatabase(t *testing.T) *mongodriver.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed repository tests in short mode")
	}
	ctx := context.Background()

	container, err := sharedtesting.NewMongoDBContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Close(ctx); err != nil {
			t.Logf("Failed to close MongoDB container: %v", err)
		}
	})

	client, err := container.GetClient(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := client.Disconnect(ctx); err != nil {
			t.Logf("Failed to disconnect MongoDB client: %v", err)
		}
	})

	return client.Database("route_execution_test")
}

func integrationOrder(t *testing.T, orderID, orderNumber string) *domain.ProductionOrder {
	t.Helper()
	order, err := domain.NewProductionOrder(orderID, orderNumber, "CUST-1", "SITE-A", []domain.OrderLine{
		{LineID: "line-1", ItemID: "ITEM-1", ItemType: "Widget", Quantity: 2, PriorityNo: 5},
	}, integrationNow)
	require.NoError(t, err)
	return order
}

func integrationRoute(t *testing.T, instanceID, orderID string) *domain.RouteInstance {
	t.Helper()
	template, err := domain.NewRouteTemplate("tpl-1", "STD", "Standard route", []domain.RouteTemplateStep{
		{Sequence: 10, Code: "CUT", Name: "Cut stock", WorkCenterID: "WC-CUT", Required: true,
			DataCaptureMode: domain.DataCaptureElectronicRequired, TimeCaptureMode: domain.TimeCaptureAutomated},
		{Sequence: 20, Code: "PACK", Name: "Pack", WorkCenterID: "WC-PACK", Required: true,
			DataCaptureMode: domain.DataCaptureElectronicRequired, TimeCaptureMode: domain.TimeCaptureAutomated},
	}, integrationNow)
	require.NoError(t, err)

	siteID := "SITE-A"
	assignment := &domain.RouteAssignment{
		AssignmentID:  "asg-1",
		TemplateID:    template.TemplateID,
		SiteID:        &siteID,
		Priority:      100,
		Revision:      1,
		EffectiveFrom: integrationNow.Add(-24 * time.Hour),
		Active:        true,
		CreatedAt:     integrationNow,
		UpdatedAt:     integrationNow,
	}

	seq := 0
	newStepID := func() string {
		seq++
		return instanceID + "-step-" + string(rune('0'+seq))
	}
	return domain.NewRouteInstance(instanceID, orderID, "line-1", template, assignment, domain.TierSiteDefault, newStepID, integrationNow)
}

func TestOrderRepository(t *testing.T) {
	db := setupDatabase(t)
	ctx := context.Background()
	repo := mongodb.NewOrderRepository(db)

	order := integrationOrder(t, "order-1", "SO-1001")
	require.NoError(t, repo.Save(ctx, order))
	assert.Empty(t, order.DomainEvents, "events clear after a successful save")

	t.Run("round trips by id and number", func(t *testing.T) {
		found, err := repo.FindByID(ctx, "order-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "SO-1001", found.OrderNumber)
		assert.Equal(t, domain.LifecycleReadyForProduction, found.Lifecycle)
		require.Len(t, found.Lines, 1)
		assert.Equal(t, "ITEM-1", found.Lines[0].ItemID)

		byNumber, err := repo.FindByNumber(ctx, "SO-1001")
		require.NoError(t, err)
		require.NotNil(t, byNumber)
		assert.Equal(t, "order-1", byNumber.OrderID)
	})

	t.Run("missing orders come back nil without error", func(t *testing.T) {
		found, err := repo.FindByID(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("save upserts the same aggregate", func(t *testing.T) {
		order.MarkInProduction(integrationNow.Add(time.Hour))
		require.NoError(t, repo.Save(ctx, order))

		found, err := repo.FindByID(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, domain.LifecycleInProduction, found.Lifecycle)

		count, err := db.Collection("production_orders").CountDocuments(ctx, bson.M{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("domain events land in the outbox transactionally", func(t *testing.T) {
		count, err := db.Collection("outbox").CountDocuments(ctx, bson.M{
			"aggregateType": "ProductionOrder",
			"topic":         "mes.orders.events",
		})
		require.NoError(t, err)
		assert.Greater(t, count, int64(0))
	})
}

func TestRouteInstanceRepository(t *testing.T) {
	db := setupDatabase(t)
	ctx := context.Background()
	repo := mongodb.NewRouteInstanceRepository(db)

	route := integrationRoute(t, "inst-1", "order-1")
	require.NoError(t, repo.Save(ctx, route))

	t.Run("finds by order and line", func(t *testing.T) {
		byLine, err := repo.FindByLine(ctx, "order-1", "line-1")
		require.NoError(t, err)
		require.Len(t, byLine, 1)
		assert.Equal(t, "inst-1", byLine[0].InstanceID)
		require.Len(t, byLine[0].Steps, 2)

		byOrder, err := repo.FindByOrder(ctx, "order-1")
		require.NoError(t, err)
		assert.Len(t, byOrder, 1)
	})

	t.Run("work center lookup honors the state filter", func(t *testing.T) {
		active, err := repo.FindByWorkCenter(ctx, "WC-CUT", []domain.RouteState{domain.RouteActive})
		require.NoError(t, err)
		assert.Len(t, active, 1)

		completed, err := repo.FindByWorkCenter(ctx, "WC-CUT", []domain.RouteState{domain.RouteCompleted})
		require.NoError(t, err)
		assert.Empty(t, completed)

		elsewhere, err := repo.FindByWorkCenter(ctx, "WC-NOWHERE", nil)
		require.NoError(t, err)
		assert.Empty(t, elsewhere)
	})

	t.Run("reports template references", func(t *testing.T) {
		referenced, err := repo.ExistsByTemplate(ctx, "tpl-1")
		require.NoError(t, err)
		assert.True(t, referenced)

		referenced, err = repo.ExistsByTemplate(ctx, "tpl-unused")
		require.NoError(t, err)
		assert.False(t, referenced)
	})
}

func TestReworkRepository(t *testing.T) {
	db := setupDatabase(t)
	ctx := context.Background()
	repo := mongodb.NewReworkRepository(db)

	open, err := domain.NewRework("rw-1", "order-1", "line-1", "step-1", "cracked weld", "emp-1", false, integrationNow)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, open))

	closed, err := domain.NewRework("rw-2", "order-1", "line-1", "step-2", "bad paint", "emp-1", false, integrationNow)
	require.NoError(t, err)
	require.NoError(t, closed.Cancel("sup-1", "not needed", integrationNow))
	require.NoError(t, repo.Save(ctx, closed))

	t.Run("open lookups skip terminal tracks", func(t *testing.T) {
		byOrder, err := repo.FindOpenByOrder(ctx, "order-1")
		require.NoError(t, err)
		require.Len(t, byOrder, 1)
		assert.Equal(t, "rw-1", byOrder[0].ReworkID)

		byStep, err := repo.FindOpenByStep(ctx, "step-1")
		require.NoError(t, err)
		require.NotNil(t, byStep)

		terminal, err := repo.FindOpenByStep(ctx, "step-2")
		require.NoError(t, err)
		assert.Nil(t, terminal)
	})

	t.Run("state survives the round trip", func(t *testing.T) {
		found, err := repo.FindByID(ctx, "rw-2")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, domain.ReworkCancelled, found.State)
	})
}

func TestActivityLogRepository(t *testing.T) {
	db := setupDatabase(t)
	ctx := context.Background()
	repo := mongodb.NewActivityLogRepository(db)

	actions := []domain.ActivityAction{domain.ActivityScanIn, domain.ActivityScanOut, domain.ActivitySerialLoadVerified}
	for i, action := range actions {
		entry := &domain.ActivityLogEntry{
			EntryID:    "entry-" + string(rune('1'+i)),
			Action:     action,
			OrderID:    "order-1",
			LineID:     "line-1",
			ActorID:    "emp-1",
			ActorRole:  domain.RoleProduction,
			Notes:      "SN-1,SN-2",
			OccurredAt: integrationNow.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Append(ctx, entry))
	}

	t.Run("returns entries newest first with a limit", func(t *testing.T) {
		entries, err := repo.FindByOrder(ctx, "order-1", 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, domain.ActivitySerialLoadVerified, entries[0].Action)
		assert.Equal(t, domain.ActivityScanOut, entries[1].Action)
	})

	t.Run("finds the latest entry for an action", func(t *testing.T) {
		entry, err := repo.FindLatestByAction(ctx, "order-1", "line-1", domain.ActivitySerialLoadVerified)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "SN-1,SN-2", entry.Notes)

		entry, err = repo.FindLatestByAction(ctx, "order-1", "line-1", domain.ActivityReworkRequested)
		require.NoError(t, err)
		assert.Nil(t, entry)
	})
}
