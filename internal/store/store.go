// Package store keeps an optional history of screenshot analyses in a
// DynamoDB table so a report can be looked up again by its ID.
//
// Records share the partition key REPORT#{reportId} with the fixed sort key
// META. A TTL attribute (expiresAt) lets DynamoDB delete records after
// HistoryTTL.
package store

import (
	"context"
	"time"
)

// HistoryTTL is how long a report record is kept.
const HistoryTTL = 30 * 24 * time.Hour

// Report status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ReportRecord is one analysis attempt. Failed attempts are recorded too,
// with ErrorCode set and no Markdown.
type ReportRecord struct {
	ID         string `dynamodbav:"-"`
	CreatedAt  int64  `dynamodbav:"createdAt"`
	Filename   string `dynamodbav:"filename,omitempty"`
	MIMEType   string `dynamodbav:"mimeType"`
	Size       int64  `dynamodbav:"size"`
	Status     string `dynamodbav:"status"`
	ErrorCode  string `dynamodbav:"errorCode,omitempty"`
	Model      string `dynamodbav:"model,omitempty"`
	DurationMs int64  `dynamodbav:"durationMs"`
	ArchiveKey string `dynamodbav:"archiveKey,omitempty"`
	Markdown   string `dynamodbav:"markdown,omitempty"`
}

// HistoryStore persists report records. Get returns (nil, nil) when the
// record does not exist.
type HistoryStore interface {
	PutReport(ctx context.Context, record *ReportRecord) error
	GetReport(ctx context.Context, reportID string) (*ReportRecord, error)
}
