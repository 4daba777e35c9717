package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config はS3互換ストレージバックエンドの設定。
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // MinIO等のS3互換サービス用のカスタムエンドポイント
	UsePathStyle    bool
	PublicBaseURL   string // オブジェクトを公開するベースURL（CDN等）
	Prefix          string // オブジェクトキーの接頭辞
}

// objectUploader はmanager.Uploaderのうち使用するメソッド。
type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// objectDeleter はs3.Clientのうち使用するメソッド。
type objectDeleter interface {
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Resolver はS3互換オブジェクトストレージにアップロードするバックエンド。
// 動画の長さは取得しない（0になる）。
type S3Resolver struct {
	uploader objectUploader
	deleter  objectDeleter
	bucket   string
	baseURL  string
	prefix   string
	logger   *slog.Logger
}

// NewS3Resolver はAWS設定を読み込み、S3Resolverを生成する。
// アクセスキーが未指定の場合はデフォルトの認証情報チェーンを使用する。
func NewS3Resolver(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Resolver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("public base URL is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Options...)

	return newS3Resolver(manager.NewUploader(client), client, cfg, logger), nil
}

func newS3Resolver(uploader objectUploader, deleter objectDeleter, cfg S3Config, logger *slog.Logger) *S3Resolver {
	return &S3Resolver{
		uploader: uploader,
		deleter:  deleter,
		bucket:   cfg.Bucket,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		prefix:   strings.Trim(cfg.Prefix, "/"),
		logger:   logger,
	}
}

// Name はバックエンド名を返す。
func (r *S3Resolver) Name() string { return "s3" }

// objectKey は新しいオブジェクトキーを生成する。
func (r *S3Resolver) objectKey(ref Ref) string {
	key := ref.Field + "/" + uuid.NewString() + ref.Ext()
	if r.prefix != "" {
		key = r.prefix + "/" + key
	}
	return key
}

// Resolve は一時ファイルをバケットにアップロードし、公開URLを返す。
func (r *S3Resolver) Resolve(ctx context.Context, ref Ref) (*Resolved, error) {
	f, err := os.Open(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open upload: %v", ErrResolution, err)
	}
	defer f.Close()

	key := r.objectKey(ref)
	input := &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ref.ContentType != "" {
		input.ContentType = aws.String(ref.ContentType)
	}

	if _, err := r.uploader.Upload(ctx, input); err != nil {
		r.logger.Error("S3へのアップロードに失敗しました",
			slog.String("field", ref.Field),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: failed to upload to S3: %v", ErrResolution, err)
	}

	return &Resolved{URL: r.baseURL + "/" + key}, nil
}

// Discard は公開URLに対応するオブジェクトを削除する。
// このバックエンドが発行していないURLはエラーになる。
func (r *S3Resolver) Discard(ctx context.Context, mediaURL string) error {
	key, ok := strings.CutPrefix(mediaURL, r.baseURL+"/")
	if !ok || key == "" {
		return fmt.Errorf("url is not managed by this bucket: %s", mediaURL)
	}

	_, err := r.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Backend = (*S3Resolver)(nil)
