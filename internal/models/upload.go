package models

import "time"

// UploadStatus tracks an ingestion run.
type UploadStatus string

const (
	UploadProcessing UploadStatus = "Processing"
	UploadCompleted  UploadStatus = "Completed"
	UploadFailed     UploadStatus = "Failed"
)

// Upload is one entry of the data history.
type Upload struct {
	ID         string       `json:"id"`
	File       string       `json:"file"`
	Status     UploadStatus `json:"status"`
	Records    int          `json:"records"`
	Duplicates int          `json:"duplicates"`
	Invalid    int          `json:"invalid"`
	Summary    string       `json:"summary,omitempty"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
}
