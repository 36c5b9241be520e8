// Worker consumes auth and request events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, TELEMETRY_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL. The hosted service settings are not needed.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"identity-gateway/internal/config"
	"identity-gateway/internal/telemetry/loki"
	"identity-gateway/internal/telemetry/relay"
)

func main() {
	cfg, err := config.LoadAuxiliary()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		log.Fatal("worker: LOKI_URL is required")
	}

	topic := cfg.TelemetryKafkaTopic
	if topic == "" {
		topic = "identity-gateway-telemetry"
	}
	groupID := cfg.KafkaGroupID
	if groupID == "" {
		groupID = "identity-gateway-telemetry-worker"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  1 * time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker: relaying %s (group %s) to %s", topic, groupID, cfg.LokiURL)
	if err := relay.New(reader, loki.NewClient(cfg.LokiURL)).Run(ctx); err != nil {
		log.Printf("worker: %v", err)
		return
	}
	log.Println("worker: stopped")
}
