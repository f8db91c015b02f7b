package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/logging"
	sc "github.com/dmitrijs2005/passvault/internal/server/config"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveAlgorithm names the cipher of the envelopes inside an archive.
const ArchiveAlgorithm = "aes-256-cbc"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	headBucket = func(c *s3.Client, ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
		return c.HeadBucket(ctx, in, optFns...)
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ExportService writes vault archives to S3-compatible storage. Archives
// carry the stored envelopes as they are; nothing is decrypted.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	log         logging.Logger
	now         func() time.Time
}

func NewExportService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config, log logging.Logger) *ExportService {
	return &ExportService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		log:         log.With("module", "exports"),
		now:         time.Now,
	}
}

// GetRandomStorageKey returns a fresh object key partitioned by date.
func GetRandomStorageKey(t time.Time) string {
	return fmt.Sprintf("users/%d/%d/%d/%v.json", t.Year(), t.Month(), t.Day(), uuid.New())
}

func (s *ExportService) checkSettings() error {
	var missing []string
	if s.config.S3Bucket == "" {
		missing = append(missing, "bucket")
	}
	if s.config.S3Region == "" {
		missing = append(missing, "region")
	}
	if s.config.S3BaseEndpoint == "" {
		missing = append(missing, "endpoint")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing s3 settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *ExportService) getClients(ctx context.Context) (*s3.Client, *s3.PresignClient, error) {
	if err := s.checkSettings(); err != nil {
		return nil, nil, err
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, newS3PresignClient(client), nil
}

// Export uploads an archive of the owner's entries and returns its record
// with a presigned download URL. The bucket must be reachable before a
// record is written. The record is stored as pending before the upload and
// marked completed after it.
func (s *ExportService) Export(ctx context.Context, ownerID string) (*models.Export, error) {
	client, presignClient, err := s.getClients(ctx)
	if err == nil {
		_, err = headBucket(client, ctx, &s3.HeadBucketInput{Bucket: aws.String(s.config.S3Bucket)})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: object storage: %v", common.ErrorInternal, err)
	}

	items, err := s.repomanager.Entries(s.db).ListSealedByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", common.ErrPersistence, err)
	}

	now := s.now().UTC()
	archive := models.ExportArchive{
		OwnerID:    ownerID,
		Algorithm:  ArchiveAlgorithm,
		ExportedAt: now,
		Entries:    make([]*models.ExportedEntry, 0, len(items)),
	}
	for _, e := range items {
		archive.Entries = append(archive.Entries, &models.ExportedEntry{
			ID:        e.ID,
			Name:      e.Name,
			Website:   e.Website,
			Username:  e.Username,
			Secret:    e.Secret,
			Notes:     e.Notes,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		})
	}

	body, err := json.Marshal(archive)
	if err != nil {
		return nil, fmt.Errorf("%w: encode archive: %v", common.ErrorInternal, err)
	}

	repo := s.repomanager.Exports(s.db)
	export := &models.Export{
		UserID:     ownerID,
		StorageKey: GetRandomStorageKey(now),
		EntryCount: len(archive.Entries),
	}
	if err := repo.Create(ctx, export); err != nil {
		return nil, fmt.Errorf("%w: create export: %v", common.ErrPersistence, err)
	}

	bucket := s.config.S3Bucket
	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &export.StorageKey,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		s.log.Error(ctx, "archive upload failed", "export_id", export.ID, "error", err)
		return nil, fmt.Errorf("%w: upload archive: %v", common.ErrorInternal, err)
	}

	if err := repo.MarkUploaded(ctx, export.ID); err != nil {
		return nil, fmt.Errorf("%w: mark uploaded: %v", common.ErrPersistence, err)
	}
	export.Status = models.ExportStatusCompleted

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &export.StorageKey,
	}, s3.WithPresignExpires(s.config.PresignValidity))
	if err != nil {
		return nil, fmt.Errorf("%w: presign archive: %v", common.ErrorInternal, err)
	}
	export.URL = req.URL
	export.ExpiresAt = now.Add(s.config.PresignValidity)

	s.log.Info(ctx, "vault exported", "export_id", export.ID, "owner_id", ownerID, "entries", export.EntryCount)
	return export, nil
}

// History lists the owner's earlier exports, newest first. Download URLs
// are not included; they expire shortly after each export.
func (s *ExportService) History(ctx context.Context, ownerID string) ([]*models.Export, error) {
	items, err := s.repomanager.Exports(s.db).ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list exports: %v", common.ErrPersistence, err)
	}
	return items, nil
}
