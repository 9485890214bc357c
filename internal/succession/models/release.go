package models

import (
	id "heirloom/pkg/domain"
)

// Archive is the handle returned by the export service. Content is never
// stored here; each request regenerates it from the branch.
type Archive struct {
	Handle      string `json:"handle"`
	DownloadURL string `json:"download_url,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// ReleaseNotification is handed to the notifier after a release.
type ReleaseNotification struct {
	HeirID        id.HeirID   `json:"heir_id"`
	BranchID      id.BranchID `json:"branch_id"`
	Contact       string      `json:"contact"`
	DownloadToken string      `json:"download_token"`
	ArchiveHandle string      `json:"archive_handle"`
}

// ReleaseOutcome is returned by a successful Release.
type ReleaseOutcome struct {
	HeirID           id.HeirID `json:"heir_id"`
	DownloadToken    string    `json:"download_token"`
	Archive          Archive   `json:"archive"`
	NotificationSent bool      `json:"notification_sent"`
}

// ReleaseResult is one item of a scan.
type ReleaseResult struct {
	HeirID  id.HeirID `json:"heir_id"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

// Download is a resolved download token.
type Download struct {
	HeirID   id.HeirID   `json:"heir_id"`
	BranchID id.BranchID `json:"branch_id"`
	Archive  Archive     `json:"archive"`
}
