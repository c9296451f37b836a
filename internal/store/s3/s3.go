// Package s3 optionally archives synthesized TTS audio records, gated by
// STORE_ARCHIVE_AUDIO. Adapted from the teacher's internal/storage/s3.go
// (S3Service.UploadFile/GetPublicURL), narrowed from the teacher's
// general-purpose workspace-file uploader to one-shot audio-record puts
// keyed by room/unit/language.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kgr0831/relay/internal/roomcore"
)

// Archive uploads audio records to a single bucket under a
// room/lang/unit key layout.
type Archive struct {
	client *s3.Client
	bucket string
}

// NewArchive builds an Archive. A zero-value bucket disables archival; call
// sites should check Enabled before calling Put.
func NewArchive(cfg aws.Config, bucket string) *Archive {
	return &Archive{client: s3.NewFromConfig(cfg), bucket: bucket}
}

// Enabled reports whether a bucket was configured.
func (a *Archive) Enabled() bool { return a.bucket != "" }

// Put uploads one audio record and returns its object key.
func (a *Archive) Put(ctx context.Context, roomID string, rec roomcore.AudioRecord) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	ext := "bin"
	switch rec.Format {
	case "audio/mpeg":
		ext = "mp3"
	case "audio/pcm", "audio/L16":
		ext = "pcm"
	}
	key := fmt.Sprintf("rooms/%s/%s/%s-%d.%s", roomID, rec.Lang, rec.RootUnitID, time.Now().UnixNano(), ext)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(rec.Audio),
		ContentType: aws.String(rec.Format),
	})
	if err != nil {
		return "", fmt.Errorf("archive audio record: %w", err)
	}
	return key, nil
}
