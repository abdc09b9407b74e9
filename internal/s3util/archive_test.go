package s3util

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects      map[string][]byte
	contentTypes map[string]string
	tagging      map[string]string
	failKey      string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		tagging:      make(map[string]string),
	}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if *in.Key == f.failKey {
		return nil, errors.New("access denied")
	}
	data, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = data
	f.contentTypes[*in.Key] = *in.ContentType
	f.tagging[*in.Key] = *in.Tagging
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type fakePresigner struct{ expires time.Duration }

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://" + *in.Bucket + ".example/" + *in.Key}, nil
}

func TestKeys(t *testing.T) {
	created := time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC)
	prefix := ArchivePrefix("r1", created)
	if prefix != "reports/2026/03/07/r1/" {
		t.Errorf("unexpected prefix %q", prefix)
	}
	if got := ImageKey(prefix, "image/jpeg"); got != "reports/2026/03/07/r1/screenshot.jpg" {
		t.Errorf("unexpected jpeg key %q", got)
	}
	if got := ImageKey(prefix, "image/png"); got != "reports/2026/03/07/r1/screenshot.png" {
		t.Errorf("unexpected png key %q", got)
	}
	if got := ReportKey(prefix); got != "reports/2026/03/07/r1/report.md" {
		t.Errorf("unexpected report key %q", got)
	}
}

func TestPutAndGetReport(t *testing.T) {
	fake := newFakeS3()
	a := NewArchive(fake, nil, "audit-archive")
	created := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	prefix, err := a.Put(context.Background(), "r2", created, []byte("PNGDATA"), "image/png", "# Report")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	imageKey := ImageKey(prefix, "image/png")
	if string(fake.objects[imageKey]) != "PNGDATA" || fake.contentTypes[imageKey] != "image/png" {
		t.Errorf("image not archived correctly under %s", imageKey)
	}
	if fake.tagging[imageKey] != projectTag {
		t.Errorf("expected project tagging, got %q", fake.tagging[imageKey])
	}
	if !strings.HasPrefix(fake.contentTypes[ReportKey(prefix)], "text/markdown") {
		t.Error("expected markdown content type for report")
	}

	md, err := a.GetReport(context.Background(), prefix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md != "# Report" {
		t.Errorf("expected archived report, got %q", md)
	}
}

func TestPutImageFailureSkipsReport(t *testing.T) {
	fake := newFakeS3()
	created := time.Now()
	fake.failKey = ImageKey(ArchivePrefix("r3", created), "image/png")

	_, err := NewArchive(fake, nil, "b").Put(context.Background(), "r3", created, []byte("x"), "image/png", "md")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(fake.objects) != 0 {
		t.Errorf("expected nothing written, got %d objects", len(fake.objects))
	}
}

func TestImageURL(t *testing.T) {
	presigner := &fakePresigner{}
	a := NewArchive(newFakeS3(), presigner, "b")
	url, err := a.ImageURL(context.Background(), "reports/2026/10/19/r4/", "image/jpeg", 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://b.example/reports/2026/10/19/r4/screenshot.jpg" {
		t.Errorf("unexpected url %q", url)
	}
	if presigner.expires != 15*time.Minute {
		t.Errorf("expected expiry to be passed through, got %v", presigner.expires)
	}

	if _, err := NewArchive(newFakeS3(), nil, "b").ImageURL(context.Background(), "p/", "image/png", time.Minute); err == nil {
		t.Error("expected error without presigner")
	}
}
