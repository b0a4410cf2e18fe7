package config

import (
	"os"
	"strings"
	"time"

	"brickshare/pkg/domain"
	textutil "brickshare/pkg/platform/strings"
)

// Config captures daemon-level configuration. Engine parameters (fee rate,
// voting thresholds) are code-level defaults adjusted through owner
// operations, not environment.
type Config struct {
	// Addr is the bind address of the operational HTTP surface
	// (health and metrics only).
	Addr string

	// Owner is the registry owner account: the only identity allowed to
	// create assets, withdraw the pool, and adjust thresholds. It is also
	// the compliance super-admin.
	Owner domain.AccountID

	// PostgresURL enables the durable store mirror when non-empty.
	PostgresURL string

	// Redis caches compliance verification lookups when configured.
	Redis RedisConfig

	// Kafka streams operation events to external indexers when brokers
	// are configured.
	Kafka KafkaConfig
}

// RedisConfig holds cache connection settings.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds event stream settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("BRICKSHARE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	owner := os.Getenv("BRICKSHARE_OWNER")
	if owner == "" {
		// Development default - must be overridden in any real deployment.
		owner = "owner-dev"
	}

	topic := os.Getenv("BRICKSHARE_KAFKA_TOPIC")
	if topic == "" {
		topic = "brickshare.events"
	}

	var brokers []string
	if raw := os.Getenv("BRICKSHARE_KAFKA_BROKERS"); raw != "" {
		brokers = textutil.DedupeAndTrim(strings.Split(raw, ","))
	}

	return Config{
		Addr:        addr,
		Owner:       domain.AccountID(owner),
		PostgresURL: os.Getenv("BRICKSHARE_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("BRICKSHARE_REDIS_URL"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
	}
}
