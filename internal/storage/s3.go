package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/fathima-sithara/messaging-service/internal/domain"
)

// Object is the durable result handed to the delivery path. The coordinator
// only ever sees the URL, never raw bytes.
type Object struct {
	Key  string
	URL  string
	Type string
	Size int64
}

type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	region     string
	publicRead bool
	maxBytes   int64
	presignTTL time.Duration
}

func NewS3Store(ctx context.Context, region, bucket string, publicRead bool, maxBytes int64, presignTTL time.Duration) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     bucket,
		region:     region,
		publicRead: publicRead,
		maxBytes:   maxBytes,
		presignTTL: presignTTL,
	}, nil
}

// Classify maps a MIME type to the message type it produces. Images, audio
// and video get first-class types, everything else is a generic file.
func Classify(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return domain.TypeImage
	case strings.HasPrefix(contentType, "video/"):
		return domain.TypeVideo
	case strings.HasPrefix(contentType, "audio/"):
		return domain.TypeAudio
	default:
		return domain.TypeFile
	}
}

// CheckSize enforces the upload limit before any bytes leave the process.
func CheckSize(size, max int64) error {
	if max > 0 && size > max {
		return fmt.Errorf("%w: %d bytes (limit %d)", domain.ErrUploadTooLarge, size, max)
	}
	return nil
}

// Upload stores the file durably and returns its URL. Must complete before
// any message referencing the file is persisted.
func (s *S3Store) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (*Object, error) {
	if err := CheckSize(int64(len(data)), s.maxBytes); err != nil {
		return nil, err
	}

	key := userID + "/" + uuid.New().String() + "_" + filename
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpload, err)
	}

	msgType := Classify(contentType)
	if msgType == domain.TypeImage {
		if thumb, err := generateThumbnail(data); err == nil {
			_, _ = s.uploader.Upload(ctx, &s3.PutObjectInput{
				Bucket:      aws.String(s.bucket),
				Key:         aws.String(key + "_thumb.jpg"),
				Body:        bytes.NewReader(thumb),
				ContentType: aws.String("image/jpeg"),
			})
		}
	}

	objURL, err := s.objectURL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpload, err)
	}
	return &Object{Key: key, URL: objURL, Type: msgType, Size: int64(len(data))}, nil
}

func (s *S3Store) objectURL(ctx context.Context, key string) (string, error) {
	if s.publicRead {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, url.PathEscape(key)), nil
	}
	p := s3.NewPresignClient(s.client)
	req, err := p.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
