// Package notifier hands release notifications to the delivery pipeline.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"heirloom/internal/platform/kafka"
	"heirloom/internal/succession/models"
	"heirloom/pkg/requestcontext"
)

const recordType = "heir_release_notification"

type publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Kafka publishes one record per release, keyed by heir so retries for the
// same heir land on the same partition. Delivery happens downstream.
type Kafka struct {
	producer      publisher
	topic         string
	publicBaseURL string
}

func NewKafka(producer publisher, topic, publicBaseURL string) *Kafka {
	return &Kafka{producer: producer, topic: topic, publicBaseURL: publicBaseURL}
}

type notificationRecord struct {
	Type          string    `json:"type"`
	HeirID        string    `json:"heir_id"`
	BranchID      string    `json:"branch_id"`
	Contact       string    `json:"contact"`
	DownloadToken string    `json:"download_token"`
	DownloadURL   string    `json:"download_url"`
	ArchiveHandle string    `json:"archive_handle"`
	RequestedAt   time.Time `json:"requested_at"`
}

func (k *Kafka) SendRelease(ctx context.Context, n models.ReleaseNotification) error {
	value, err := json.Marshal(notificationRecord{
		Type:          recordType,
		HeirID:        n.HeirID.String(),
		BranchID:      n.BranchID.String(),
		Contact:       n.Contact,
		DownloadToken: n.DownloadToken,
		DownloadURL:   k.publicBaseURL + "/downloads/" + n.DownloadToken,
		ArchiveHandle: n.ArchiveHandle,
		RequestedAt:   requestcontext.Now(ctx),
	})
	if err != nil {
		return fmt.Errorf("encode release notification: %w", err)
	}
	headers := map[string]string{"type": recordType}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		headers["request_id"] = requestID
	}
	return k.producer.Publish(ctx, kafka.Message{
		Topic:   k.topic,
		Key:     []byte(n.HeirID.String()),
		Value:   value,
		Headers: headers,
	})
}
