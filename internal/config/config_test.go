package config_test

import (
	"testing"
	"time"

	"github.com/perkscan/benefit-radar/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")
	t.Setenv("MODEL_BASE_URL", "")
	t.Setenv("MODEL_NAME", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "benefits", cfg.ElasticsearchIndex)
	require.Len(t, cfg.KafkaBrokers, 1)
	require.Equal(t, "kafka:9092", cfg.KafkaBrokers[0])
	require.Equal(t, "extraction_runs", cfg.KafkaTopic)
	require.Equal(t, "benefit-worker", cfg.KafkaConsumer)
	require.Equal(t, "http://ollama:11434", cfg.Model.BaseURL)
	require.Equal(t, "llama3.1:8b", cfg.Model.Name)
	require.Equal(t, 2, cfg.GateCapacity)
	require.Equal(t, 2, cfg.Model.MaxRetries)
	require.True(t, cfg.Parallel)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ELASTICSEARCH_INDEX", "custom")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")
	t.Setenv("KAFKA_TOPIC", "custom_topic")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("MODEL_BASE_URL", "http://localhost:11434")
	t.Setenv("MODEL_NAME", "qwen2.5:7b")
	t.Setenv("MODEL_TEMPERATURE", "0.3")
	t.Setenv("MODEL_TIMEOUT", "90s")
	t.Setenv("MODEL_MAX_RETRIES", "4")
	t.Setenv("WORKER_GATE_CAPACITY", "3")
	t.Setenv("WORKER_PARALLEL_PIPELINES", "false")
	t.Setenv("WORKER_MAX_MODEL_CHARS", "4000")
	t.Setenv("WORKER_SEEN_CAPACITY", "5")
	t.Setenv("WORKER_SEEN_TTL", "48h")
	t.Setenv("WORKER_COMMIT_INTERVAL", "5s")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "custom", cfg.ElasticsearchIndex)
	require.Len(t, cfg.KafkaBrokers, 2)
	require.Equal(t, "broker-a:29092", cfg.KafkaBrokers[0])
	require.Equal(t, "custom_topic", cfg.KafkaTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, "http://localhost:11434", cfg.Model.BaseURL)
	require.Equal(t, "qwen2.5:7b", cfg.Model.Name)
	require.Equal(t, 0.3, cfg.Model.Temperature)
	require.Equal(t, 90*time.Second, cfg.Model.Timeout)
	require.Equal(t, 4, cfg.Model.MaxRetries)
	require.Equal(t, 3, cfg.GateCapacity)
	require.False(t, cfg.Parallel)
	require.Equal(t, 4000, cfg.MaxModelChars)
	require.Equal(t, 5, cfg.SeenCapacity)
	require.Equal(t, 48*time.Hour, cfg.SeenTTL)
	require.Equal(t, 5*time.Second, cfg.CommitInterval)
}

func TestLoadWorkerRejectsBadValues(t *testing.T) {
	t.Setenv("WORKER_GATE_CAPACITY", "0")

	_, err := config.LoadWorker()
	require.Error(t, err)
	require.Contains(t, err.Error(), "WORKER_GATE_CAPACITY")
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "api-index")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "api-index", cfg.ElasticsearchIndex)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "ret-index")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "ret-index", cfg.ElasticsearchIndex)
}
