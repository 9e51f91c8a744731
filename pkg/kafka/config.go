package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers  []string
	ClientID string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:  []string{"localhost:9092"},
		ClientID: "route-execution-service",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1, // All replicas
	}
}

// Topics contains the route-execution Kafka topic names
var Topics = struct {
	RouteEvents  string
	OrderEvents  string
	ReworkEvents string
}{
	RouteEvents:  "mes.route-execution.events",
	OrderEvents:  "mes.orders.events",
	ReworkEvents: "mes.rework.events",
}
