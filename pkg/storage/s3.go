package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// FolderVerification is the S3 prefix for organization verification documents.
	FolderVerification = "verification"
	// FolderLogos is the S3 prefix for brand and organization logos.
	FolderLogos = "logos"
)

// AssetKind selects which file types an upload accepts.
type AssetKind int

const (
	AssetVerificationDocument AssetKind = iota
	AssetLogo
)

var (
	documentExtensions = map[string]string{
		".pdf":  "application/pdf",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
	}
	logoExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".svg":  "image/svg+xml",
	}
)

func extensionsFor(kind AssetKind) map[string]string {
	if kind == AssetLogo {
		return logoExtensions
	}
	return documentExtensions
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	AssetsBucket         string
	PresignExpireMinutes int
}

// S3 issues pre-signed upload URLs for profile assets.
type S3 struct {
	client *s3.Client
	cfg    S3Config
	logger *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or .env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using credentials from .env/config", zap.String("region", cfg.Region), zap.String("assets_bucket", cfg.AssetsBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{client: s3.NewFromConfig(awsCfg), cfg: cfg, logger: logger}, nil
}

// ValidateFileType reports whether the filename's extension (and content type, when given)
// is accepted for kind.
func ValidateFileType(kind AssetKind, contentType, filename string) bool {
	ct, ok := extensionsFor(kind)[strings.ToLower(path.Ext(filename))]
	if !ok {
		return false
	}
	return contentType == "" || strings.EqualFold(contentType, ct)
}

// ContentTypeForFilename returns the MIME type for an asset filename extension.
func ContentTypeForFilename(kind AssetKind, filename string) string {
	if ct, ok := extensionsFor(kind)[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// VerificationDocumentKey returns verification/{org_id}/{unix}-{filename}.
func VerificationDocumentKey(orgID, filename string, at time.Time) string {
	return path.Join(FolderVerification, orgID, fmt.Sprintf("%d-%s", at.Unix(), sanitize(filename)))
}

// LogoKey returns logos/{owner_id}/{unix}-{filename}.
func LogoKey(ownerID, filename string, at time.Time) string {
	return path.Join(FolderLogos, ownerID, fmt.Sprintf("%d-%s", at.Unix(), sanitize(filename)))
}

func sanitize(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
}

// PresignAssetUpload returns a pre-signed PUT URL for key in the assets bucket.
func (s *S3) PresignAssetUpload(ctx context.Context, key, contentType string) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AssetsBucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.PresignExpire()
	})
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return req.URL, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// AssetURL returns the public URL of an object in the assets bucket.
func (s *S3) AssetURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.AssetsBucket, s.cfg.Region, key)
}

// KeyForURL returns the object key of a URL produced by AssetURL. URLs pointing
// anywhere else report false.
func (s *S3) KeyForURL(u string) (string, bool) {
	return keyForURL(s.AssetURL(""), u)
}

func keyForURL(prefix, u string) (string, bool) {
	key, ok := strings.CutPrefix(u, prefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// DeleteAsset removes an object from the assets bucket.
func (s *S3) DeleteAsset(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.AssetsBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
