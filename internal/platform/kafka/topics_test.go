package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"heirloom/internal/platform/config"
	audit "heirloom/pkg/platform/audit"
)

func TestTopics(t *testing.T) {
	cfg := config.Default().Kafka

	assert.Equal(t, "heirloom.audit.compliance", AuditTopic(cfg.AuditTopicPrefix, audit.CategoryCompliance))
	assert.ElementsMatch(t, []string{
		"heirloom.audit.compliance",
		"heirloom.audit.operations",
		"heirloom.notifications",
	}, Topics(cfg))
}
