package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/perkscan/benefit-radar/internal/catalog"
	"github.com/perkscan/benefit-radar/internal/config"
	"github.com/perkscan/benefit-radar/internal/dedupe"
	"github.com/perkscan/benefit-radar/internal/elasticsearch"
	"github.com/perkscan/benefit-radar/internal/llm"
	"github.com/perkscan/benefit-radar/internal/logger"
	"github.com/perkscan/benefit-radar/internal/models"
	"github.com/perkscan/benefit-radar/internal/pipeline"
)

// runRequest is one extraction run submitted over Kafka. Documents are
// supplied inline; the worker never fetches content itself.
type runRequest struct {
	RunID               string            `json:"run_id"`
	Categories          []string          `json:"categories"`
	CategoryPriority    []string          `json:"category_priority"`
	Parallel            *bool             `json:"parallel"`
	Documents           []models.Document `json:"documents"`
	SelectedDocumentIDs []string          `json:"selected_document_ids"`
}

type candidateIndexer interface {
	IndexCandidate(ctx context.Context, cand models.Candidate) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	seen := dedupe.NewSeenCache(cfg.SeenCapacity, cfg.SeenTTL)

	gate := llm.NewGate(cfg.GateCapacity)
	client := &llm.Client{
		BaseURL:      cfg.Model.BaseURL,
		Model:        cfg.Model.Name,
		Temperature:  cfg.Model.Temperature,
		Timeout:      cfg.Model.Timeout,
		MaxRetries:   cfg.Model.MaxRetries,
		RetryBackoff: cfg.Model.RetryBackoff,
		Gate:         gate,
		Log:          log,
	}

	coordinator := &pipeline.Coordinator{
		Generator: client,
		ModelParams: llm.GenerateParams{
			MaxTokens:     cfg.Model.MaxTokens,
			ContextWindow: cfg.Model.ContextWindow,
		},
		Log: log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
		slog.Int("gate_capacity", cfg.GateCapacity),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, coordinator, seen, cfg, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			// Send to DLQ with error context, retry with backoff
			dlqMsg := kafka.Message{
				Value: msg.Value,
				Headers: append(msg.Headers,
					kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
					kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
					kafka.Header{Key: "error", Value: []byte(err.Error())},
					kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
				),
			}

			// Retry DLQ write with exponential backoff
			dlqSuccess := false
			for attempt := 0; attempt < 5; attempt++ {
				if dlqErr := dlqWriter.WriteMessages(ctx, dlqMsg); dlqErr == nil {
					dlqSuccess = true
					log.Info("message sent to DLQ",
						slog.Int("partition", msg.Partition),
						slog.Int64("offset", msg.Offset),
						slog.Int("attempt", attempt+1),
					)
					break
				} else {
					backoff := time.Duration(1<<uint(attempt)) * time.Second
					log.Warn("DLQ write failed, retrying",
						slog.Any("err", dlqErr),
						slog.Int("attempt", attempt+1),
						slog.Duration("backoff", backoff),
					)
					select {
					case <-time.After(backoff):
						// Continue to next attempt
					case <-ctx.Done():
						log.Info("context canceled during DLQ retry")
						return
					}
				}
			}

			// Only commit if DLQ write succeeded; otherwise skip commit and reprocess on restart
			if dlqSuccess {
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Error("commit failed message to dlq", slog.Any("err", err))
				}
			} else {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			}
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

func processMessage(ctx context.Context, log *slog.Logger, esClient candidateIndexer, coordinator *pipeline.Coordinator, seen *dedupe.SeenCache, cfg *config.Worker, msg kafka.Message) error {
	var req runRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return err
	}

	if len(req.Documents) == 0 {
		return errors.New("run request has no documents")
	}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}

	if seen.IsSeen(runID) {
		log.Debug("duplicate run request", slog.String("run", runID))
		return nil
	}

	specs, unknown := catalog.SpecsByName(req.Categories)
	if len(unknown) > 0 {
		log.Warn("ignoring unknown categories", slog.Any("categories", unknown))
	}
	if len(specs) == 0 {
		return fmt.Errorf("no known categories in run request: %v", req.Categories)
	}
	for _, spec := range specs {
		if spec.MaxModelChars == 0 {
			spec.MaxModelChars = cfg.MaxModelChars
		}
	}

	parallel := cfg.Parallel
	if req.Parallel != nil {
		parallel = *req.Parallel
	}

	result := coordinator.Run(ctx, req.Documents, specs, pipeline.Options{
		RunID:            runID,
		Parallel:         parallel,
		CategoryPriority: req.CategoryPriority,
		ForceDocumentIDs: req.SelectedDocumentIDs,
	})

	indexed := 0
	for _, cand := range result.Candidates {
		if err := esClient.IndexCandidate(ctx, cand); err != nil {
			return fmt.Errorf("index candidate %s: %w", cand.ID, err)
		}
		indexed++
	}

	seen.MarkSeen(runID)
	log.Info("run indexed",
		slog.String("run", runID),
		slog.Int("documents", len(req.Documents)),
		slog.Int("candidates", indexed),
		slog.Int("before_dedup", result.TotalBeforeDedup),
		slog.Int("failed_pipelines", len(result.FailedPipelines)),
	)
	return nil
}
