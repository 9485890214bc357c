//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"heirloom/internal/platform/config"
	"heirloom/internal/platform/kafka"
	"heirloom/pkg/testutil/containers"
)

type ProducerSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *kafka.Producer
}

func TestProducerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerSuite))
}

func (s *ProducerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.kafka = mgr.GetKafka(s.T())

	var err error
	s.producer, err = kafka.NewProducer(context.Background(), config.KafkaConfig{
		Brokers:  []string{s.kafka.Broker},
		ClientID: "heirloom-test",
	})
	s.Require().NoError(err)
	s.Require().NotNil(s.producer)
}

func (s *ProducerSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *ProducerSuite) TestPublishAndConsume() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "heirloom.test." + uuid.NewString()
	s.Require().NoError(kafka.EnsureTopics(ctx, s.producer.Client(), 1, 1, topic))
	// Second call must tolerate existing topics.
	s.Require().NoError(kafka.EnsureTopics(ctx, s.producer.Client(), 1, 1, topic))

	err := s.producer.Publish(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte("heir-1"),
		Value:   []byte(`{"event":"successor_released"}`),
		Headers: map[string]string{"event_type": "successor_released"},
	})
	s.Require().NoError(err)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.kafka.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal("heir-1", string(records[0].Key))
	s.Equal(`{"event":"successor_released"}`, string(records[0].Value))
}
