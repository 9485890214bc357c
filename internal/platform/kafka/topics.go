package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"heirloom/internal/platform/config"
	audit "heirloom/pkg/platform/audit"
)

// AuditTopic returns the topic audit events of category are relayed to.
func AuditTopic(prefix string, category audit.EventCategory) string {
	return prefix + string(category)
}

// Topics lists every topic heirloom produces to.
func Topics(cfg config.KafkaConfig) []string {
	return []string{
		AuditTopic(cfg.AuditTopicPrefix, audit.CategoryCompliance),
		AuditTopic(cfg.AuditTopicPrefix, audit.CategoryOperations),
		cfg.NotificationsTopic,
	}
}

// EnsureTopics creates any missing topics. Existing topics are left alone.
func EnsureTopics(ctx context.Context, client *kgo.Client, partitions int32, replication int16, topics ...string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	var errs []error
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			errs = append(errs, fmt.Errorf("create topic %s: %w", r.Topic, r.Err))
		}
	}
	return errors.Join(errs...)
}
