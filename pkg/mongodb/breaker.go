package mongodb

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mes-platform/route-execution-service/pkg/logging"
	"github.com/mes-platform/route-execution-service/pkg/metrics"
)

// CircuitBreakerClient wraps Client with circuit breaker protection so that a
// failing MongoDB deployment sheds load instead of piling up timeouts.
type CircuitBreakerClient struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewCircuitBreakerClient creates a circuit breaker protected MongoDB client
func NewCircuitBreakerClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *CircuitBreakerClient {
	cbc := &CircuitBreakerClient{
		client:  client,
		logger:  logger.WithComponent("mongodb"),
		metrics: m,
	}

	cbc.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mongodb",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cbc.logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if cbc.metrics != nil {
				cbc.metrics.RecordCircuitBreakerState(name, int(to))
				if to == gobreaker.StateOpen {
					cbc.metrics.RecordCircuitBreakerTrip(name)
				}
			}
		},
	})

	return cbc
}

// Database returns the underlying database handle
func (c *CircuitBreakerClient) Database() *mongo.Database {
	return c.client.Database()
}

// Client returns the underlying MongoDB client
func (c *CircuitBreakerClient) Client() *mongo.Client {
	return c.client.Client()
}

// Close disconnects the client
func (c *CircuitBreakerClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HealthCheck performs a health check with circuit breaker protection
func (c *CircuitBreakerClient) HealthCheck(ctx context.Context) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.HealthCheck(ctx)
	})
	return err
}

// WithTransaction executes a function within a transaction with circuit breaker protection
func (c *CircuitBreakerClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.WithTransaction(ctx, fn)
	})
	return err
}
