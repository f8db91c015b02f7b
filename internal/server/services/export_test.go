package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/logging"
	sc "github.com/dmitrijs2005/passvault/internal/server/config"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storageKeyRe = regexp.MustCompile(`^users/\d{4}/\d{1,2}/\d{1,2}/[0-9a-f-]{36}\.json$`)

func newExportSvc(t *testing.T, store *fakeStore) *ExportService {
	t.Helper()
	cfg := &sc.Config{
		S3Region:        "us-east-1",
		S3RootUser:      "minioadmin",
		S3RootPassword:  "minioadmin",
		S3BaseEndpoint:  "http://127.0.0.1:9000",
		S3Bucket:        "passvault",
		PresignValidity: 15 * time.Minute,
	}
	svc := NewExportService(nil, store, cfg, logging.Nop{})
	svc.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }
	return svc
}

// s3Stub replaces the S3 seams for one test and records the upload.
type s3Stub struct {
	putInput *s3.PutObjectInput
	putBody  []byte
	putErr   error

	headBucket string
	headErr    error

	presignKey string
	presignErr error
}

func stubS3(t *testing.T) *s3Stub {
	t.Helper()
	origLoad, origNewS3, origNewPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origHead, origPut, origPresign := headBucket, putObject, presignGetObject
	t.Cleanup(func() {
		headBucket = origHead
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		putObject = origPut
		presignGetObject = origPresign
	})

	stub := &s3Stub{}
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client { return &s3.Client{} }
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient { return &s3.PresignClient{} }

	headBucket = func(c *s3.Client, ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
		if stub.headErr != nil {
			return nil, stub.headErr
		}
		stub.headBucket = aws.ToString(in.Bucket)
		return &s3.HeadBucketOutput{}, nil
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		if stub.putErr != nil {
			return nil, stub.putErr
		}
		body, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, err
		}
		stub.putInput, stub.putBody = in, body
		return &s3.PutObjectOutput{}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if stub.presignErr != nil {
			return nil, stub.presignErr
		}
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		if po.Expires != 15*time.Minute {
			return nil, errors.New("unexpected presign expiry")
		}
		stub.presignKey = *in.Key
		return &v4.PresignedHTTPRequest{URL: "http://127.0.0.1:9000/passvault/" + *in.Key + "?X-Amz-Signature=abc"}, nil
	}
	return stub
}

func Test_getClients_AppliesSettings(t *testing.T) {
	svc := newExportSvc(t, newFakeStore())
	stubS3(t)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				return aws.Config{}, err
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		creds, err := lo.Credentials.Retrieve(ctx)
		if err != nil {
			t.Fatalf("retrieve credentials: %v", err)
		}
		if creds.AccessKeyID != "minioadmin" || creds.SecretAccessKey != "minioadmin" {
			t.Fatalf("static credentials not applied: %+v", creds)
		}
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	client, presign, err := svc.getClients(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.NotNil(t, presign)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, _, err = svc.getClients(context.Background())
	assert.EqualError(t, err, "load-fail")
}

func TestGetRandomStorageKey(t *testing.T) {
	ts := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	a, b := GetRandomStorageKey(ts), GetRandomStorageKey(ts)
	assert.Regexp(t, storageKeyRe, a)
	assert.Contains(t, a, "users/2024/3/9/")
	assert.NotEqual(t, a, b)
}

func TestExport_UploadsEnvelopesOnly(t *testing.T) {
	store := newFakeStore()
	entrySvc := NewEntryService(nil, store, testKey(), logging.Nop{})
	_, err := entrySvc.Create(context.Background(), alice, githubInput())
	require.NoError(t, err)
	_, err = entrySvc.Create(context.Background(), bob, githubInput())
	require.NoError(t, err)

	stub := stubS3(t)
	svc := newExportSvc(t, store)

	export, err := svc.Export(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, 1, export.EntryCount)
	assert.Equal(t, models.ExportStatusCompleted, export.Status)
	assert.Regexp(t, storageKeyRe, export.StorageKey)
	assert.Equal(t, export.StorageKey, stub.presignKey)
	assert.Contains(t, export.URL, export.StorageKey)
	assert.Equal(t, time.Date(2024, 3, 9, 12, 15, 0, 0, time.UTC), export.ExpiresAt)

	assert.Equal(t, "passvault", stub.headBucket)
	require.NotNil(t, stub.putInput)
	assert.Equal(t, "passvault", aws.ToString(stub.putInput.Bucket))
	assert.Equal(t, export.StorageKey, aws.ToString(stub.putInput.Key))
	assert.Equal(t, "application/json", aws.ToString(stub.putInput.ContentType))
	assert.NotContains(t, string(stub.putBody), "hunter2")

	var archive models.ExportArchive
	require.NoError(t, json.Unmarshal(stub.putBody, &archive))
	assert.Equal(t, alice, archive.OwnerID)
	assert.Equal(t, "aes-256-cbc", archive.Algorithm)
	require.Len(t, archive.Entries, 1)
	assert.Equal(t, "GitHub", archive.Entries[0].Name)

	plain, err := (&models.Entry{Secret: archive.Entries[0].Secret}).DecryptedSecret(testKey())
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)

	history, err := svc.History(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ExportStatusCompleted, history[0].Status)
	assert.Empty(t, history[0].URL)
}

func TestExport_EmptyVault(t *testing.T) {
	stub := stubS3(t)
	svc := newExportSvc(t, newFakeStore())

	export, err := svc.Export(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 0, export.EntryCount)
	assert.Contains(t, string(stub.putBody), `"entries":[]`)
}

func TestExport_StorageUnavailable(t *testing.T) {
	store := newFakeStore()
	stubS3(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	svc := newExportSvc(t, store)

	_, err := svc.Export(context.Background(), alice)
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "load-fail")
	assert.Empty(t, store.exports, "no record before storage is reachable")
}

func TestExport_BucketUnreachable(t *testing.T) {
	store := newFakeStore()
	stub := stubS3(t)
	stub.headErr = errors.New("head-fail")
	svc := newExportSvc(t, store)

	_, err := svc.Export(context.Background(), alice)
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "head-fail")
	assert.Nil(t, stub.putInput)
	assert.Empty(t, store.exports)
}

func TestExport_MissingSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *sc.Config)
		want   string
	}{
		{"bucket", func(c *sc.Config) { c.S3Bucket = "" }, "missing s3 settings: bucket"},
		{"region", func(c *sc.Config) { c.S3Region = "" }, "missing s3 settings: region"},
		{"endpoint", func(c *sc.Config) { c.S3BaseEndpoint = "" }, "missing s3 settings: endpoint"},
		{"all", func(c *sc.Config) { *c = sc.Config{} }, "missing s3 settings: bucket, region, endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			stub := stubS3(t)
			loaded := false
			loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
				loaded = true
				return aws.Config{}, nil
			}
			svc := newExportSvc(t, store)
			tt.mutate(svc.config)

			_, err := svc.Export(context.Background(), alice)
			require.ErrorIs(t, err, common.ErrorInternal)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, loaded)
			assert.Empty(t, stub.headBucket)
			assert.Empty(t, store.exports)
		})
	}
}

func TestExport_UploadFailureLeavesPending(t *testing.T) {
	store := newFakeStore()
	stub := stubS3(t)
	stub.putErr = errors.New("put-fail")
	svc := newExportSvc(t, store)

	_, err := svc.Export(context.Background(), alice)
	require.ErrorIs(t, err, common.ErrorInternal)

	history, err := svc.History(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ExportStatusPending, history[0].Status)
}

func TestExport_PresignFailure(t *testing.T) {
	stub := stubS3(t)
	stub.presignErr = errors.New("presign-fail")
	svc := newExportSvc(t, newFakeStore())

	_, err := svc.Export(context.Background(), alice)
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "presign-fail")
}

func TestExport_PersistenceErrors(t *testing.T) {
	for _, method := range []string{"Entries.ListSealedByOwner", "Exports.Create", "Exports.MarkUploaded"} {
		t.Run(method, func(t *testing.T) {
			store := newFakeStore()
			store.fail[method] = errors.New("db down")
			stubS3(t)
			svc := newExportSvc(t, store)

			_, err := svc.Export(context.Background(), alice)
			assert.ErrorIs(t, err, common.ErrPersistence)
		})
	}
}

func TestHistory_PersistenceError(t *testing.T) {
	store := newFakeStore()
	store.fail["Exports.ListByUser"] = errors.New("db down")
	svc := newExportSvc(t, store)

	_, err := svc.History(context.Background(), alice)
	assert.ErrorIs(t, err, common.ErrPersistence)
}
