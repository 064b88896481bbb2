package archive

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/export"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/utils"
)

const DefaultURLExpiry = 7 * 24 * time.Hour

var ErrArchiveDisabled = errors.New("没有配置归档存储桶")

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Archiver 把运行报告上传到 S3 兼容的存储桶中，并返回一个有时效的下载链接
type Archiver struct {
	client    objectPutter
	presign   objectPresigner
	bucket    string
	prefix    string
	urlExpiry time.Duration
}

func New(ctx context.Context, cfg *config.Config) (*Archiver, error) {
	if cfg.Archive.Bucket == "" {
		return nil, ErrArchiveDisabled
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Archive.Region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Archive.ForcePathStyle
		if cfg.Archive.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Archive.Endpoint)
		}
	})

	return &Archiver{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    cfg.Archive.Bucket,
		prefix:    cfg.Archive.Prefix,
		urlExpiry: DefaultURLExpiry,
	}, nil
}

// ObjectKey 返回运行报告在存储桶中的键，例如 reports/42-di-yi-ci-pai-ke.xlsx
func (a *Archiver) ObjectKey(run *domain.SchedulingRun) string {
	return path.Join(a.prefix, utils.ReportFileName(run.ID, run.Name, export.FormatWorkbook.Extension()))
}

// ArchiveRun 生成运行的 XLSX 报告并上传，返回预签名的下载链接
func (a *Archiver) ArchiveRun(ctx context.Context, run *domain.SchedulingRun) (string, error) {
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, export.ReportFromRun(run)); err != nil {
		return "", err
	}

	key := a.ObjectKey(run)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(export.FormatWorkbook.ContentType()),
		Metadata: map[string]string{
			"run-id":   strconv.FormatInt(run.ID, 10),
			"run-name": utils.FileSlug(run.Name),
		},
	}
	if _, err := a.client.PutObject(ctx, input); err != nil {
		return "", err
	}

	out, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = a.urlExpiry
	})
	if err != nil {
		return "", err
	}

	return out.URL, nil
}
