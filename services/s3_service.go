package services

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
)

// Signed photo URLs expire after signedURLTTL; the cache TTL sits just
// under it so a cached URL is always still valid when served.
const (
	signedURLTTL      = 24 * time.Hour
	signedURLCacheTTL = 23 * time.Hour
)

type S3Service struct {
	Bucket    string
	Presigner *s3.PresignClient
	Redis     *redis.Client
}

// NewS3Service initializes the S3 presign client
func NewS3Service(rdb *redis.Client) *S3Service {
	cfg, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		log.Fatalf("Failed to load AWS config for S3: %v", err)
	}
	return &S3Service{
		Bucket:    os.Getenv("S3_BUCKET_NAME"),
		Presigner: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		Redis:     rdb,
	}
}

// SignPhotoURL turns a bare storage key into a presigned, time-limited
// GET URL. Values that are already full URLs pass through unchanged.
// Signing the same key twice within the cache TTL hits redis instead of
// the presigner.
func (s *S3Service) SignPhotoURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}

	cacheKey := "signedurl:" + key
	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}

	presigned, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(signedURLTTL))
	if err != nil {
		return "", err
	}

	if s.Redis != nil {
		if err := s.Redis.Set(ctx, cacheKey, presigned.URL, signedURLCacheTTL).Err(); err != nil {
			log.Printf("⚠️ Failed to cache signed URL for %s: %v", key, err)
		}
	}

	return presigned.URL, nil
}
