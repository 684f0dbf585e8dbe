package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Model holds the benefit extraction model endpoint settings.
type Model struct {
	BaseURL       string
	Name          string
	Temperature   float64
	MaxTokens     int
	ContextWindow int
	Timeout       time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
}

// Worker holds configuration for the Kafka -> extraction -> Elasticsearch worker.
type Worker struct {
	Common
	Model
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaConsumer string

	GateCapacity  int
	Parallel      bool
	MaxModelChars int

	SeenCapacity   int
	SeenTTL        time.Duration
	CommitInterval time.Duration
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr    string
	DefaultPage int
	MaxPage     int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "benefits"),
		},
		Model: Model{
			BaseURL:       getEnv("MODEL_BASE_URL", "http://ollama:11434"),
			Name:          getEnv("MODEL_NAME", "llama3.1:8b"),
			Temperature:   getFloat("MODEL_TEMPERATURE", 0.1),
			MaxTokens:     getInt("MODEL_MAX_TOKENS", 1024),
			ContextWindow: getInt("MODEL_CONTEXT_WINDOW", 8192),
			Timeout:       getDuration("MODEL_TIMEOUT", "120s"),
			MaxRetries:    getInt("MODEL_MAX_RETRIES", 2),
			RetryBackoff:  getDuration("MODEL_RETRY_BACKOFF", "1s"),
		},
		KafkaBrokers:  splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "extraction_runs"),
		KafkaConsumer: getEnv("KAFKA_CONSUMER_GROUP", "benefit-worker"),

		GateCapacity:  getInt("WORKER_GATE_CAPACITY", 2),
		Parallel:      getBool("WORKER_PARALLEL_PIPELINES", true),
		MaxModelChars: getInt("WORKER_MAX_MODEL_CHARS", 6000),

		SeenCapacity:   getInt("WORKER_SEEN_CAPACITY", 20000),
		SeenTTL:        getDuration("WORKER_SEEN_TTL", "24h"),
		CommitInterval: getDuration("WORKER_COMMIT_INTERVAL", "2s"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}

	if c.GateCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_GATE_CAPACITY must be positive")
	}
	if c.MaxModelChars <= 0 {
		return nil, fmt.Errorf("WORKER_MAX_MODEL_CHARS must be positive")
	}
	if c.SeenCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_SEEN_CAPACITY must be positive")
	}
	if c.Model.MaxRetries < 0 {
		return nil, fmt.Errorf("MODEL_MAX_RETRIES cannot be negative")
	}
	if c.Model.Timeout <= 0 {
		return nil, fmt.Errorf("MODEL_TIMEOUT must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "benefits"),
		},
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage: getInt("API_PAGE_SIZE", 20),
		MaxPage:     getInt("API_MAX_PAGE_SIZE", 100),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common: Common{
			ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
			ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "benefits"),
		},
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := parseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseDuration(raw string) (time.Duration, error) {
	return time.ParseDuration(raw)
}
