// Package s3util archives analysed screenshots and their reports in S3.
//
// Objects for one analysis share the prefix
// reports/{yyyy}/{mm}/{dd}/{reportId}/ and are tagged for cost allocation.
package s3util

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const (
	projectTag     = "Project=screen-audit"
	reportFilename = "report.md"
	imageBasename  = "screenshot"
)

// ObjectAPI is the subset of the S3 client the archive uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// PresignAPI is the subset of the S3 presign client the archive uses.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Archive stores screenshots and reports in one bucket.
type Archive struct {
	client    ObjectAPI
	presigner PresignAPI
	bucket    string
}

// NewArchive returns an Archive for bucket. presigner may be nil, in which
// case ImageURL always fails.
func NewArchive(client ObjectAPI, presigner PresignAPI, bucket string) *Archive {
	return &Archive{client: client, presigner: presigner, bucket: bucket}
}

// Bucket returns the bucket name.
func (a *Archive) Bucket() string {
	return a.bucket
}

// ProjectTagging returns the URL-encoded tagging string for PutObjectInput.
func ProjectTagging() *string {
	t := projectTag
	return &t
}

// ArchivePrefix returns the key prefix shared by all objects of one report.
func ArchivePrefix(reportID string, createdAt time.Time) string {
	return fmt.Sprintf("reports/%s/%s/", createdAt.UTC().Format("2006/01/02"), reportID)
}

// ImageKey returns the object key of the archived screenshot.
func ImageKey(prefix, mimeType string) string {
	ext := ".png"
	if strings.Contains(mimeType, "jp") {
		ext = ".jpg"
	}
	return path.Join(prefix, imageBasename+ext)
}

// ReportKey returns the object key of the archived markdown report.
func ReportKey(prefix string) string {
	return path.Join(prefix, reportFilename)
}

// Put uploads the screenshot and the markdown report and returns the shared
// prefix. The image is written first; a failure there skips the report.
func (a *Archive) Put(ctx context.Context, reportID string, createdAt time.Time, image []byte, mimeType, markdown string) (string, error) {
	prefix := ArchivePrefix(reportID, createdAt)

	imageKey := ImageKey(prefix, mimeType)
	if err := a.putObject(ctx, imageKey, mimeType, bytes.NewReader(image)); err != nil {
		return "", err
	}
	reportKey := ReportKey(prefix)
	if err := a.putObject(ctx, reportKey, "text/markdown; charset=utf-8", strings.NewReader(markdown)); err != nil {
		return "", err
	}

	log.Info().
		Str("bucket", a.bucket).
		Str("prefix", prefix).
		Int("image_bytes", len(image)).
		Int("report_bytes", len(markdown)).
		Msg("Report archived to S3")
	return prefix, nil
}

func (a *Archive) putObject(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        body,
		ContentType: &contentType,
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", key, err)
	}
	return nil
}

// GetReport reads the archived markdown for prefix.
func (a *Archive) GetReport(ctx context.Context, prefix string) (string, error) {
	key := ReportKey(prefix)
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &a.bucket, Key: &key,
	})
	if err != nil {
		return "", fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), nil
}

// ImageURL returns a pre-signed GET URL for the archived screenshot.
func (a *Archive) ImageURL(ctx context.Context, prefix, mimeType string, expiry time.Duration) (string, error) {
	if a.presigner == nil {
		return "", fmt.Errorf("presigning not configured")
	}
	key := ImageKey(prefix, mimeType)
	result, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &a.bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}
