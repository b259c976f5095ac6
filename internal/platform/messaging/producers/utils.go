package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const topicLookupAttempts = 3

var topicLookupDelay = time.Second

// topicAdmin is the subset of *kafka.Conn needed to provision a topic.
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// ensureTopic creates topic unless its partitions can be read.
func ensureTopic(admin topicAdmin, topic string, numPartitions, replicationFactor int, logger *slog.Logger) error {
	var (
		partitions []kafka.Partition
		err        error
	)
	for attempt := 1; attempt <= topicLookupAttempts; attempt++ {
		partitions, err = admin.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			logger.Info("Kafka topic already exists", "topic", topic, "partitions", len(partitions))
			return nil
		}
		if attempt < topicLookupAttempts {
			logger.Warn("Failed to read topic partitions, retrying", "topic", topic, "attempt", attempt, "error", err)
			time.Sleep(topicLookupDelay)
		}
	}

	logger.Info("Creating Kafka topic", "topic", topic, "last_read_error", err)
	cfg := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     max(numPartitions, 1),
		ReplicationFactor: max(replicationFactor, 1),
	}
	if err := admin.CreateTopics(cfg); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	logger.Info("Successfully created Kafka topic", "topic", topic)
	return nil
}
