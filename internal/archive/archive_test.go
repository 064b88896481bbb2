package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

type fakeS3 struct {
	key         string
	contentType string
	metadata    map[string]string
	body        []byte
	putErr      error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.key = *params.Key
	f.contentType = *params.ContentType
	f.metadata = params.Metadata
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://archive.example.com/" + *params.Key}, nil
}

func testArchiver(fake *fakeS3) *Archiver {
	return &Archiver{
		client:    fake,
		presign:   fake,
		bucket:    "reports",
		prefix:    "reports/",
		urlExpiry: DefaultURLExpiry,
	}
}

func testRun() *domain.SchedulingRun {
	return &domain.SchedulingRun{
		ID:   42,
		Name: "第一次排课",
		Assignments: []domain.ScheduledActivity{
			{Activity: "SLA101A", Room: "Loft 310", TimeSlot: "10 AM", Facilitator: "Glen"},
		},
		Violations: map[string]int{"room_conflicts": 0},
	}
}

func TestNew_DisabledWithoutBucket(t *testing.T) {
	a, err := New(context.Background(), &config.Config{})
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestArchiver_ObjectKey(t *testing.T) {
	a := testArchiver(&fakeS3{})
	assert.Equal(t, "reports/42-di-yi-ci-pai-ke.xlsx", a.ObjectKey(testRun()))
}

func TestArchiver_ArchiveRun(t *testing.T) {
	fake := &fakeS3{}
	a := testArchiver(fake)

	url, err := a.ArchiveRun(context.Background(), testRun())
	require.NoError(t, err)

	assert.Equal(t, "https://archive.example.com/reports/42-di-yi-ci-pai-ke.xlsx", url)
	assert.Equal(t, "reports/42-di-yi-ci-pai-ke.xlsx", fake.key)
	assert.Equal(t, "42", fake.metadata["run-id"])
	assert.Contains(t, fake.contentType, "spreadsheetml")
	// xlsx 是 zip 格式
	require.Greater(t, len(fake.body), 4)
	assert.Equal(t, []byte("PK"), fake.body[:2])
}

func TestArchiver_ArchiveRunPutError(t *testing.T) {
	a := testArchiver(&fakeS3{putErr: errors.New("boom")})

	_, err := a.ArchiveRun(context.Background(), testRun())
	assert.Error(t, err)
}
